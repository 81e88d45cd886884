package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

// Service defines operations that record and query audit entries.
//
// Record runs inside the caller's transaction: a mutation whose audit write
// fails must roll back with it.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.AuditLogEntry, error)
	List(ctx context.Context, projectID uuid.UUID, params pagination.Params, filters ListFilters) (*EntryList, error)
	ExportCSV(ctx context.Context, w io.Writer, projectID uuid.UUID, filters ListFilters) error
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data an audit entry requires.
type RecordEntryInput struct {
	ProjectID   uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	Action      enums.AuditAction
	EntityType  string
	EntityID    uuid.UUID
	Before      any
	After       any
	Reason      *string
}

// EntryList is a page of audit entries plus the cursor for the next page.
type EntryList struct {
	Entries    []models.AuditLogEntry `json:"entries"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.AuditLogEntry, error) {
	if input.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("project id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id is required")
	}
	if !input.ActorRole.IsValid() {
		return nil, fmt.Errorf("invalid actor role %q", input.ActorRole)
	}
	if !input.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", input.Action)
	}
	if input.EntityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if input.EntityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}

	before, err := marshalSnapshot(input.Before)
	if err != nil {
		return nil, fmt.Errorf("marshaling before snapshot: %w", err)
	}
	after, err := marshalSnapshot(input.After)
	if err != nil {
		return nil, fmt.Errorf("marshaling after snapshot: %w", err)
	}

	entry := &models.AuditLogEntry{
		ProjectID:   input.ProjectID,
		ActorUserID: input.ActorUserID,
		ActorRole:   input.ActorRole,
		Action:      input.Action,
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		Before:      before,
		After:       after,
		Reason:      input.Reason,
	}

	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) List(ctx context.Context, projectID uuid.UUID, params pagination.Params, filters ListFilters) (*EntryList, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("project id is required")
	}
	entries, next, err := s.repo.ListByProject(ctx, projectID, params, filters)
	if err != nil {
		return nil, err
	}
	return &EntryList{Entries: entries, NextCursor: next}, nil
}

func marshalSnapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
