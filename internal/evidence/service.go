package evidence

import (
	"context"
	"encoding/json"
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
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordEntryInput) (*models.AuditLogEntry, error)
}

type recalculator interface {
	Recalculate(ctx context.Context, tx *gorm.DB, event eligibility.StateChanged) (*models.PaymentEligibility, error)
}

// Decision is the single review action a reviewer can take on evidence.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Service defines the evidence gate operations.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Evidence, error)
	Review(ctx context.Context, input ReviewInput) (*models.Evidence, error)
	HasSubmitted(ctx context.Context, tx *gorm.DB, milestoneID uuid.UUID) (bool, error)
	ListByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]models.Evidence, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	audit  auditRecorder
	recalc recalculator
}

// SubmitInput carries a vendor's completion claim. Attachments are external
// file references, not file contents.
type SubmitInput struct {
	MilestoneID     uuid.UUID
	ActorUserID     uuid.UUID
	ActorRole       enums.ActorRole
	ProgressPercent decimal.Decimal
	Remarks         *string
	Attachments     json.RawMessage
}

// ReviewInput carries the one-shot review of a submitted evidence record.
type ReviewInput struct {
	EvidenceID  uuid.UUID
	Decision    Decision
	Note        *string
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

type evidenceSnapshot struct {
	Status     enums.EvidenceStatus `json:"status"`
	ReviewNote *string              `json:"review_note,omitempty"`
}

// NewService wires the evidence gate with its dependencies.
func NewService(repo Repository, tx txRunner, auditSvc auditRecorder, recalc recalculator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("evidence repository required")
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
	return &service{repo: repo, tx: tx, audit: auditSvc, recalc: recalc}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Evidence, error) {
	if input.MilestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleVendor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the vendor can submit evidence")
	}
	if input.ProgressPercent.IsNegative() || input.ProgressPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "progress percent must be between 0 and 100")
	}

	var record *models.Evidence
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		milestone, err := repo.FindMilestone(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
		}
		if milestone.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone is closed")
		}

		record = &models.Evidence{
			MilestoneID:     input.MilestoneID,
			SubmittedBy:     input.ActorUserID,
			ProgressPercent: input.ProgressPercent,
			Remarks:         input.Remarks,
			Attachments:     input.Attachments,
			Status:          enums.EvidenceStatusSubmitted,
			Frozen:          true,
		}
		if err := repo.Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create evidence")
		}

		_, err = s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   milestone.ProjectID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Action:      enums.AuditActionEvidenceSubmitted,
			EntityType:  "evidence",
			EntityID:    record.ID,
			After:       evidenceSnapshot{Status: record.Status},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Review applies the single allowed mutation to an evidence record and hands
// the result to the eligibility engine in the same transaction.
func (s *service) Review(ctx context.Context, input ReviewInput) (*models.Evidence, error) {
	if input.EvidenceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "evidence id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleOwner && input.ActorRole != enums.ActorRolePMC {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot review evidence")
	}

	var status enums.EvidenceStatus
	switch input.Decision {
	case DecisionApprove:
		status = enums.EvidenceStatusApproved
	case DecisionReject:
		status = enums.EvidenceStatusRejected
		if input.Note == nil || strings.TrimSpace(*input.Note) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeReasonRequired, "rejection note required")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", input.Decision))
	}

	var record *models.Evidence
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		record, err = repo.FindByIDForUpdate(ctx, input.EvidenceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "evidence not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load evidence")
		}
		if record.SubmittedBy == input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "submitter cannot review their own evidence")
		}
		if record.Status.IsReviewed() {
			return pkgerrors.New(pkgerrors.CodeConflict, "evidence already reviewed")
		}

		milestone, err := repo.FindMilestone(ctx, record.MilestoneID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
		}

		before := evidenceSnapshot{Status: record.Status, ReviewNote: record.ReviewNote}
		now := time.Now().UTC()

		record.Status = status
		record.ReviewNote = input.Note
		record.ReviewedBy = &input.ActorUserID
		record.ReviewedAt = &now

		if err := repo.Save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save evidence")
		}

		if _, err := s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   milestone.ProjectID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Action:      enums.AuditActionEvidenceReviewed,
			EntityType:  "evidence",
			EntityID:    record.ID,
			Before:      before,
			After:       evidenceSnapshot{Status: record.Status, ReviewNote: record.ReviewNote},
		}); err != nil {
			return err
		}

		_, err = s.recalc.Recalculate(ctx, tx, eligibility.StateChanged{
			MilestoneID:       record.MilestoneID,
			ActorUserID:       input.ActorUserID,
			ActorRole:         input.ActorRole,
			EventType:         enums.EligibilityEventRecalculated,
			TriggerEntityType: "evidence",
			TriggerEntityID:   record.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// HasSubmitted reports whether the milestone carries at least one unreviewed
// evidence record. The lifecycle machine calls this inside its transition
// transaction as the submission gate.
func (s *service) HasSubmitted(ctx context.Context, tx *gorm.DB, milestoneID uuid.UUID) (bool, error) {
	if milestoneID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	count, err := s.repo.WithTx(tx).CountSubmitted(ctx, milestoneID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count submitted evidence")
	}
	return count > 0, nil
}

func (s *service) ListByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]models.Evidence, error) {
	if milestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	records, err := s.repo.ListByMilestone(ctx, milestoneID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list evidence")
	}
	return records, nil
}
