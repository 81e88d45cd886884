package milestones

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelquintero/sitepay-backend/internal/audit"
	"github.com/rafaelquintero/sitepay-backend/internal/eligibility"
	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	pkgerrors "github.com/rafaelquintero/sitepay-backend/pkg/errors"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

type stubRepository struct {
	project     *models.Project
	milestone   *models.Milestone
	transitions []*models.MilestoneTransition
	saves       int
}

func (s *stubRepository) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepository) Create(ctx context.Context, milestone *models.Milestone) error {
	if milestone.ID == uuid.Nil {
		milestone.ID = uuid.New()
	}
	s.milestone = milestone
	return nil
}

func (s *stubRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	if s.milestone == nil || s.milestone.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.milestone, nil
}

func (s *stubRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return s.FindByID(ctx, id)
}

func (s *stubRepository) FindProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	if s.project == nil || s.project.ID != projectID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.project, nil
}

func (s *stubRepository) Save(ctx context.Context, milestone *models.Milestone) error {
	s.milestone = milestone
	s.saves++
	return nil
}

func (s *stubRepository) ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params) ([]models.Milestone, string, error) {
	if s.milestone == nil || s.milestone.ProjectID != projectID {
		return nil, "", nil
	}
	return []models.Milestone{*s.milestone}, "", nil
}

func (s *stubRepository) AppendTransition(ctx context.Context, transition *models.MilestoneTransition) error {
	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}
	s.transitions = append(s.transitions, transition)
	return nil
}

func (s *stubRepository) ListTransitions(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneTransition, error) {
	var out []models.MilestoneTransition
	for _, transition := range s.transitions {
		if transition.MilestoneID == milestoneID {
			out = append(out, *transition)
		}
	}
	return out, nil
}

type stubAudit struct {
	entries []audit.RecordEntryInput
}

func (s *stubAudit) Record(ctx context.Context, tx *gorm.DB, input audit.RecordEntryInput) (*models.AuditLogEntry, error) {
	s.entries = append(s.entries, input)
	return &models.AuditLogEntry{}, nil
}

type stubRecalculator struct {
	events []eligibility.StateChanged
}

func (s *stubRecalculator) Recalculate(ctx context.Context, tx *gorm.DB, event eligibility.StateChanged) (*models.PaymentEligibility, error) {
	s.events = append(s.events, event)
	return &models.PaymentEligibility{}, nil
}

type stubEvidenceGate struct {
	submitted bool
}

func (s *stubEvidenceGate) HasSubmitted(ctx context.Context, tx *gorm.DB, milestoneID uuid.UUID) (bool, error) {
	return s.submitted, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (stubTxRunner) WithTxRetry(ctx context.Context, attempts int, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	repo     *stubRepository
	audit    *stubAudit
	recalc   *stubRecalculator
	evidence *stubEvidenceGate
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     &stubRepository{project: &models.Project{ID: uuid.New()}},
		audit:    &stubAudit{},
		recalc:   &stubRecalculator{},
		evidence: &stubEvidenceGate{},
	}
	svc, err := NewService(f.repo, stubTxRunner{}, f.audit, f.recalc, f.evidence, 3)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedMilestone(state enums.MilestoneState) *models.Milestone {
	milestone := &models.Milestone{
		ID:             uuid.New(),
		ProjectID:      f.repo.project.ID,
		Title:          "foundation pour",
		Value:          decimal.NewFromInt(1000),
		AdvancePercent: decimal.NewFromInt(20),
		State:          state,
	}
	f.repo.milestone = milestone
	return milestone
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected %s error, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, typed.Code(), err)
	}
}

func TestCreateMilestoneWithEligibilityRow(t *testing.T) {
	f := newFixture(t)

	milestone, err := f.svc.Create(context.Background(), CreateInput{
		ProjectID:      f.repo.project.ID,
		Title:          "foundation pour",
		Value:          decimal.NewFromInt(1000),
		AdvancePercent: decimal.NewFromInt(20),
		ActorUserID:    uuid.New(),
		ActorRole:      enums.ActorRoleOwner,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if milestone.State != enums.MilestoneStateDraft {
		t.Fatalf("expected draft, got %s", milestone.State)
	}
	if len(f.recalc.events) != 1 {
		t.Fatalf("expected eligibility row creation via recalculation, got %d events", len(f.recalc.events))
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != enums.AuditActionMilestoneCreated {
		t.Fatalf("expected milestone_created audit entry, got %+v", f.audit.entries)
	}
}

func TestCreateMilestoneValidation(t *testing.T) {
	f := newFixture(t)
	base := CreateInput{
		ProjectID:      f.repo.project.ID,
		Title:          "foundation pour",
		Value:          decimal.NewFromInt(1000),
		AdvancePercent: decimal.NewFromInt(20),
		ActorUserID:    uuid.New(),
		ActorRole:      enums.ActorRoleOwner,
	}

	vendor := base
	vendor.ActorRole = enums.ActorRoleVendor
	_, err := f.svc.Create(context.Background(), vendor)
	assertCode(t, err, pkgerrors.CodeForbidden)

	zeroValue := base
	zeroValue.Value = decimal.Zero
	_, err = f.svc.Create(context.Background(), zeroValue)
	assertCode(t, err, pkgerrors.CodeValidation)

	badAdvance := base
	badAdvance.AdvancePercent = decimal.NewFromInt(120)
	_, err = f.svc.Create(context.Background(), badAdvance)
	assertCode(t, err, pkgerrors.CodeValidation)

	missingProject := base
	missingProject.ProjectID = uuid.New()
	_, err = f.svc.Create(context.Background(), missingProject)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestTransitionHappyPath(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateDraft)

	result, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateInProgress,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if result.FromState != enums.MilestoneStateDraft || result.NewState != enums.MilestoneStateInProgress {
		t.Fatalf("unexpected result %+v", result)
	}
	if milestone.StartedAt == nil {
		t.Fatalf("expected started timestamp on first entry")
	}
	if len(f.repo.transitions) != 1 {
		t.Fatalf("expected 1 transition record, got %d", len(f.repo.transitions))
	}
	record := f.repo.transitions[0]
	if record.FromState == nil || *record.FromState != enums.MilestoneStateDraft {
		t.Fatalf("unexpected from state %v", record.FromState)
	}
	if len(f.recalc.events) != 1 {
		t.Fatalf("expected recalculation after transition, got %d", len(f.recalc.events))
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != enums.AuditActionMilestoneTransitioned {
		t.Fatalf("expected milestone_transitioned audit entry, got %+v", f.audit.entries)
	}
}

func TestTransitionSkippingEdgesFails(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateDraft)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateSubmitted,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
	if len(f.repo.transitions) != 0 || len(f.recalc.events) != 0 {
		t.Fatalf("failed transition must not write anything")
	}
}

func TestTransitionNeverNoOps(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateInProgress)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateInProgress,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestTransitionRoleGate(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateSubmitted)
	f.evidence.submitted = true

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateVerified,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)

	result, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateVerified,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRolePMC,
	})
	if err != nil {
		t.Fatalf("Transition by pmc: %v", err)
	}
	if result.NewState != enums.MilestoneStateVerified {
		t.Fatalf("expected verified, got %s", result.NewState)
	}
	if len(f.recalc.events) != 1 {
		t.Fatalf("expected recalculation after verification")
	}
}

func TestTransitionEvidenceGate(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateInProgress)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateSubmitted,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	})
	assertCode(t, err, pkgerrors.CodePreconditionFailed)

	f.evidence.submitted = true
	result, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateSubmitted,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	})
	if err != nil {
		t.Fatalf("Transition with evidence: %v", err)
	}
	if result.NewState != enums.MilestoneStateSubmitted {
		t.Fatalf("expected submitted, got %s", result.NewState)
	}
}

func TestRejectionRequiresReason(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateSubmitted)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateInProgress,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleOwner,
	})
	assertCode(t, err, pkgerrors.CodeReasonRequired)

	reason := "incomplete waterproofing"
	result, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateInProgress,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleOwner,
		Reason:      &reason,
	})
	if err != nil {
		t.Fatalf("rejection with reason: %v", err)
	}
	if result.NewState != enums.MilestoneStateInProgress {
		t.Fatalf("expected in_progress, got %s", result.NewState)
	}
	if f.repo.transitions[0].Reason == nil || *f.repo.transitions[0].Reason != reason {
		t.Fatalf("reason not recorded on transition")
	}
}

func TestResubmissionKeepsOriginalStamp(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateInProgress)
	f.evidence.submitted = true

	if _, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateSubmitted,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	}); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	firstStamp := *milestone.SubmittedAt

	reason := "needs rework"
	if _, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateInProgress,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRolePMC,
		Reason:      &reason,
	}); err != nil {
		t.Fatalf("rejection: %v", err)
	}
	if _, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: milestone.ID,
		ToState:     enums.MilestoneStateSubmitted,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor,
	}); err != nil {
		t.Fatalf("resubmission: %v", err)
	}

	if !milestone.SubmittedAt.Equal(firstStamp) {
		t.Fatalf("resubmission overwrote the original submission stamp")
	}
}

func TestHistoryIsAWalkOfTheGraph(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateDraft)
	f.evidence.submitted = true
	reason := "failed inspection"

	steps := []TransitionInput{
		{ToState: enums.MilestoneStateInProgress, ActorRole: enums.ActorRoleVendor},
		{ToState: enums.MilestoneStateSubmitted, ActorRole: enums.ActorRoleVendor},
		{ToState: enums.MilestoneStateInProgress, ActorRole: enums.ActorRolePMC, Reason: &reason},
		{ToState: enums.MilestoneStateSubmitted, ActorRole: enums.ActorRoleVendor},
		{ToState: enums.MilestoneStateVerified, ActorRole: enums.ActorRoleOwner},
		{ToState: enums.MilestoneStateClosed, ActorRole: enums.ActorRoleOwner},
	}
	for _, step := range steps {
		step.MilestoneID = milestone.ID
		step.ActorUserID = uuid.New()
		if _, err := f.svc.Transition(context.Background(), step); err != nil {
			t.Fatalf("transition to %s: %v", step.ToState, err)
		}
	}

	history, err := f.svc.History(context.Background(), milestone.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != len(steps) {
		t.Fatalf("expected %d history rows, got %d", len(steps), len(history))
	}
	for _, row := range history {
		if row.FromState == nil {
			t.Fatalf("history row missing from state: %+v", row)
		}
		if !CanTransition(*row.FromState, row.ToState) {
			t.Fatalf("history contains an edge outside the graph: %s -> %s", *row.FromState, row.ToState)
		}
	}
}

func TestValidNext(t *testing.T) {
	f := newFixture(t)
	milestone := f.seedMilestone(enums.MilestoneStateSubmitted)

	states, err := f.svc.ValidNext(context.Background(), milestone.ID, enums.ActorRoleOwner)
	if err != nil {
		t.Fatalf("ValidNext: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 next states for owner, got %v", states)
	}

	states, err = f.svc.ValidNext(context.Background(), milestone.ID, enums.ActorRoleViewer)
	if err != nil {
		t.Fatalf("ValidNext: %v", err)
	}
	if len(states) != 0 {
		t.Fatalf("expected no next states for viewer, got %v", states)
	}
}

func TestTransitionNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		MilestoneID: uuid.New(),
		ToState:     enums.MilestoneStateInProgress,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleOwner,
	})
	assertCode(t, err, pkgerrors.CodeNotFound)
}
