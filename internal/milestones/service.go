package milestones

import (
	"context"
	"fmt"
	"strings"
	"time"

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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTxRetry(ctx context.Context, attempts int, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordEntryInput) (*models.AuditLogEntry, error)
}

type recalculator interface {
	Recalculate(ctx context.Context, tx *gorm.DB, event eligibility.StateChanged) (*models.PaymentEligibility, error)
}

type evidenceGate interface {
	HasSubmitted(ctx context.Context, tx *gorm.DB, milestoneID uuid.UUID) (bool, error)
}

// Service drives the milestone lifecycle. Every successful transition updates
// the milestone, appends its history row, writes the audit trail, and
// recalculates payment eligibility in one transaction.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Milestone, error)
	Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params) (*MilestoneList, error)
	History(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneTransition, error)
	ValidNext(ctx context.Context, milestoneID uuid.UUID, role enums.ActorRole) ([]enums.MilestoneState, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	audit    auditRecorder
	recalc   recalculator
	evidence evidenceGate
	attempts int
}

// CreateInput carries a new milestone. The eligibility record is created in
// the same transaction so no milestone ever exists without its payment row.
type CreateInput struct {
	ProjectID        uuid.UUID
	Title            string
	Description      *string
	Value            decimal.Decimal
	AdvancePercent   decimal.Decimal
	IsExtra          bool
	PlannedStartDate *time.Time
	PlannedEndDate   *time.Time
	ActorUserID      uuid.UUID
	ActorRole        enums.ActorRole
}

// TransitionInput carries one lifecycle edge request.
type TransitionInput struct {
	MilestoneID uuid.UUID
	ToState     enums.MilestoneState
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	Reason      *string
}

// TransitionResult reports the edge that was applied.
type TransitionResult struct {
	Milestone *models.Milestone    `json:"milestone"`
	FromState enums.MilestoneState `json:"from_state"`
	NewState  enums.MilestoneState `json:"new_state"`
}

// MilestoneList is a page of milestones plus the cursor for the next page.
type MilestoneList struct {
	Milestones []models.Milestone `json:"milestones"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type lifecycleSnapshot struct {
	State enums.MilestoneState `json:"state"`
}

// NewService wires the lifecycle state machine with its collaborators.
func NewService(repo Repository, tx txRunner, auditSvc auditRecorder, recalc recalculator, evidenceSvc evidenceGate, retryAttempts int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("milestone repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if recalc == nil {
		return nil, fmt.Errorf("eligibility recalculator required")
	}
	if evidenceSvc == nil {
		return nil, fmt.Errorf("evidence gate required")
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &service{
		repo:     repo,
		tx:       tx,
		audit:    auditSvc,
		recalc:   recalc,
		evidence: evidenceSvc,
		attempts: retryAttempts,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Milestone, error) {
	if input.ProjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleOwner && input.ActorRole != enums.ActorRolePMC {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot create milestones")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if !input.Value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must be positive")
	}
	if input.AdvancePercent.IsNegative() || input.AdvancePercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advance percent must be between 0 and 100")
	}

	var milestone *models.Milestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindProject(ctx, input.ProjectID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
		}

		milestone = &models.Milestone{
			ProjectID:        input.ProjectID,
			Title:            input.Title,
			Description:      input.Description,
			Value:            input.Value,
			AdvancePercent:   input.AdvancePercent,
			IsExtra:          input.IsExtra,
			State:            enums.MilestoneStateDraft,
			PlannedStartDate: input.PlannedStartDate,
			PlannedEndDate:   input.PlannedEndDate,
		}
		if err := repo.Create(ctx, milestone); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create milestone")
		}

		if _, err := s.recalc.Recalculate(ctx, tx, eligibility.StateChanged{
			MilestoneID:       milestone.ID,
			ActorUserID:       input.ActorUserID,
			ActorRole:         input.ActorRole,
			EventType:         enums.EligibilityEventRecalculated,
			TriggerEntityType: "milestone",
			TriggerEntityID:   milestone.ID,
		}); err != nil {
			return err
		}

		_, err := s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   input.ProjectID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Action:      enums.AuditActionMilestoneCreated,
			EntityType:  "milestone",
			EntityID:    milestone.ID,
			After:       lifecycleSnapshot{State: milestone.State},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

// Transition applies one lifecycle edge. It never silently no-ops: a request
// for an edge outside the graph fails even when the milestone already sits in
// the requested state.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if input.MilestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.ActorRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", input.ActorRole))
	}
	if !input.ToState.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target state %q", input.ToState))
	}

	var result *TransitionResult
	err := s.tx.WithTxRetry(ctx, s.attempts, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		milestone, err := repo.FindByIDForUpdate(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
		}

		from := milestone.State
		if !CanTransition(from, input.ToState) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transition %s -> %s is not allowed", from, input.ToState))
		}
		if !RoleAllowed(from, input.ToState, input.ActorRole) {
			return pkgerrors.New(pkgerrors.CodeForbidden,
				fmt.Sprintf("role %s cannot drive %s -> %s", input.ActorRole, from, input.ToState))
		}
		if input.ToState == enums.MilestoneStateSubmitted {
			ok, err := s.evidence.HasSubmitted(ctx, tx, milestone.ID)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodePreconditionFailed, "evidence is mandatory for submission")
			}
		}
		if IsRejection(from, input.ToState) && (input.Reason == nil || strings.TrimSpace(*input.Reason) == "") {
			return pkgerrors.New(pkgerrors.CodeReasonRequired, "rejection reason required")
		}

		stampFirstEntry(milestone, input.ToState)
		milestone.State = input.ToState
		if err := repo.Save(ctx, milestone); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save milestone")
		}

		fromState := from
		transition := &models.MilestoneTransition{
			MilestoneID: milestone.ID,
			FromState:   &fromState,
			ToState:     input.ToState,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Reason:      input.Reason,
		}
		if err := repo.AppendTransition(ctx, transition); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append transition")
		}

		if _, err := s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   milestone.ProjectID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Action:      enums.AuditActionMilestoneTransitioned,
			EntityType:  "milestone",
			EntityID:    milestone.ID,
			Before:      lifecycleSnapshot{State: from},
			After:       lifecycleSnapshot{State: milestone.State},
			Reason:      input.Reason,
		}); err != nil {
			return err
		}

		if _, err := s.recalc.Recalculate(ctx, tx, eligibility.StateChanged{
			MilestoneID:       milestone.ID,
			ActorUserID:       input.ActorUserID,
			ActorRole:         input.ActorRole,
			EventType:         enums.EligibilityEventRecalculated,
			TriggerEntityType: "milestone_transition",
			TriggerEntityID:   transition.ID,
		}); err != nil {
			return err
		}

		result = &TransitionResult{
			Milestone: milestone,
			FromState: from,
			NewState:  milestone.State,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	milestone, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
	}
	return milestone, nil
}

func (s *service) ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params) (*MilestoneList, error) {
	if projectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project id required")
	}
	milestones, next, err := s.repo.ListByProject(ctx, projectID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list milestones")
	}
	return &MilestoneList{Milestones: milestones, NextCursor: next}, nil
}

func (s *service) History(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneTransition, error) {
	if milestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	transitions, err := s.repo.ListTransitions(ctx, milestoneID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transitions")
	}
	return transitions, nil
}

func (s *service) ValidNext(ctx context.Context, milestoneID uuid.UUID, role enums.ActorRole) ([]enums.MilestoneState, error) {
	if milestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
	}
	milestone, err := s.Get(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	return ValidNextStates(milestone.State, role), nil
}

// stampFirstEntry sets the actual timestamp for a state the first time the
// milestone enters it. A resubmission after rejection keeps the original
// submission stamp.
func stampFirstEntry(milestone *models.Milestone, to enums.MilestoneState) {
	now := time.Now().UTC()
	switch to {
	case enums.MilestoneStateInProgress:
		if milestone.StartedAt == nil {
			milestone.StartedAt = &now
		}
	case enums.MilestoneStateSubmitted:
		if milestone.SubmittedAt == nil {
			milestone.SubmittedAt = &now
		}
	case enums.MilestoneStateVerified:
		if milestone.VerifiedAt == nil {
			milestone.VerifiedAt = &now
		}
	case enums.MilestoneStateClosed:
		if milestone.ClosedAt == nil {
			milestone.ClosedAt = &now
		}
	}
}
