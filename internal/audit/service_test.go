package audit

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

type stubRepository struct {
	created []*models.AuditLogEntry
	pages   [][]models.AuditLogEntry
	cursors []string
	calls   int
	err     error
}

func (s *stubRepository) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, entry)
	return nil
}

func (s *stubRepository) ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.AuditLogEntry, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	if s.calls >= len(s.pages) {
		return nil, "", nil
	}
	page := s.pages[s.calls]
	cursor := ""
	if s.calls < len(s.cursors) {
		cursor = s.cursors[s.calls]
	}
	s.calls++
	return page, cursor, nil
}

func validRecordInput() RecordEntryInput {
	return RecordEntryInput{
		ProjectID:   uuid.New(),
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRolePMC,
		Action:      enums.AuditActionMilestoneTransitioned,
		EntityType:  "milestone",
		EntityID:    uuid.New(),
		Before:      map[string]string{"state": "submitted"},
		After:       map[string]string{"state": "verified"},
	}
}

func TestRecordValidation(t *testing.T) {
	repo := &stubRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RecordEntryInput)
	}{
		{"missing project", func(in *RecordEntryInput) { in.ProjectID = uuid.Nil }},
		{"missing actor", func(in *RecordEntryInput) { in.ActorUserID = uuid.Nil }},
		{"bad role", func(in *RecordEntryInput) { in.ActorRole = enums.ActorRole("auditor") }},
		{"bad action", func(in *RecordEntryInput) { in.Action = enums.AuditAction("renamed") }},
		{"missing entity type", func(in *RecordEntryInput) { in.EntityType = "" }},
		{"missing entity id", func(in *RecordEntryInput) { in.EntityID = uuid.Nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validRecordInput()
			tc.mutate(&input)
			if _, err := svc.Record(context.Background(), nil, input); err == nil {
				t.Fatalf("expected validation error")
			}
			if len(repo.created) != 0 {
				t.Fatalf("expected no entry persisted, got %d", len(repo.created))
			}
		})
	}
}

func TestRecordPersistsSnapshots(t *testing.T) {
	repo := &stubRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	input := validRecordInput()
	entry, err := svc.Record(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 entry persisted, got %d", len(repo.created))
	}
	if entry.Action != input.Action {
		t.Fatalf("expected action %s, got %s", input.Action, entry.Action)
	}
	if string(entry.Before) != `{"state":"submitted"}` {
		t.Fatalf("unexpected before snapshot: %s", entry.Before)
	}
	if string(entry.After) != `{"state":"verified"}` {
		t.Fatalf("unexpected after snapshot: %s", entry.After)
	}
}

func TestRecordNilSnapshots(t *testing.T) {
	repo := &stubRepository{}
	svc, _ := NewService(repo)

	input := validRecordInput()
	input.Before = nil
	input.After = nil

	entry, err := svc.Record(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if entry.Before != nil || entry.After != nil {
		t.Fatalf("expected nil snapshots, got before=%s after=%s", entry.Before, entry.After)
	}
}

func TestListRequiresProject(t *testing.T) {
	svc, _ := NewService(&stubRepository{})
	if _, err := svc.List(context.Background(), uuid.Nil, pagination.Params{}, ListFilters{}); err == nil {
		t.Fatalf("expected error for missing project id")
	}
}

func TestExportCSVPagesThroughTrail(t *testing.T) {
	projectID := uuid.New()
	first := models.AuditLogEntry{
		ID:          uuid.New(),
		ProjectID:   projectID,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleOwner,
		Action:      enums.AuditActionPaymentBlocked,
		EntityType:  "payment_eligibility",
		EntityID:    uuid.New(),
		CreatedAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	reason := "contract_dispute"
	first.Reason = &reason
	second := models.AuditLogEntry{
		ID:          uuid.New(),
		ProjectID:   projectID,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
		Action:      enums.AuditActionEvidenceSubmitted,
		EntityType:  "evidence",
		EntityID:    uuid.New(),
		CreatedAt:   time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC),
	}

	repo := &stubRepository{
		pages:   [][]models.AuditLogEntry{{first}, {second}},
		cursors: []string{"next-page", ""},
	}
	svc, _ := NewService(repo)

	var buf bytes.Buffer
	if err := svc.ExportCSV(context.Background(), &buf, projectID, ListFilters{}); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected 2 repository pages, got %d", repo.calls)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,project_id,created_at") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "contract_dispute") {
		t.Fatalf("expected reason in first row: %s", lines[1])
	}
	if !strings.Contains(lines[2], string(enums.AuditActionEvidenceSubmitted)) {
		t.Fatalf("expected evidence action in second row: %s", lines[2])
	}
}

func TestExportCSVRequiresProject(t *testing.T) {
	svc, _ := NewService(&stubRepository{})
	var buf bytes.Buffer
	if err := svc.ExportCSV(context.Background(), &buf, uuid.Nil, ListFilters{}); err == nil {
		t.Fatalf("expected error for missing project id")
	}
}
