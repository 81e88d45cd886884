package eligibility

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelquintero/sitepay-backend/internal/audit"
	"github.com/rafaelquintero/sitepay-backend/pkg/config"
	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	pkgerrors "github.com/rafaelquintero/sitepay-backend/pkg/errors"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
	"github.com/rafaelquintero/sitepay-backend/pkg/metrics"
)

// recentEventsLimit caps how much trail a Get response carries.
const recentEventsLimit = 20

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordEntryInput) (*models.AuditLogEntry, error)
}

// Service is the single writer of payment state. Lifecycle transitions and
// evidence reviews enter through Recalculate inside their own transaction;
// humans enter through Block, Unblock and MarkPaid.
type Service interface {
	Recalculate(ctx context.Context, tx *gorm.DB, event StateChanged) (*models.PaymentEligibility, error)
	Block(ctx context.Context, input BlockInput) (*models.PaymentEligibility, error)
	Unblock(ctx context.Context, input UnblockInput) (*models.PaymentEligibility, error)
	MarkPaid(ctx context.Context, input MarkPaidInput) (*models.PaymentEligibility, error)
	Get(ctx context.Context, milestoneID uuid.UUID) (*View, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	audit   auditRecorder
	metrics *metrics.EligibilityMetrics
	cfg     config.EligibilityConfig
	log     *logger.Logger
}

// BlockInput carries a human block action.
type BlockInput struct {
	MilestoneID uuid.UUID
	ReasonCode  enums.BlockReason
	Explanation string
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// UnblockInput carries a human unblock action. Owner only.
type UnblockInput struct {
	MilestoneID uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// MarkPaidInput carries a human settlement action.
type MarkPaidInput struct {
	MilestoneID uuid.UUID
	Explanation string
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// View is the read payload for one eligibility record. Identical for every
// role; role only gates which actions a caller may take.
type View struct {
	Record    *models.PaymentEligibility `json:"record"`
	Indicator Indicator                  `json:"indicator"`
	Events    []models.EligibilityEvent  `json:"events"`
}

type stateSnapshot struct {
	State          enums.EligibilityState `json:"state"`
	EligibleAmount decimal.Decimal        `json:"eligible_amount"`
	BlockedAmount  decimal.Decimal        `json:"blocked_amount"`
}

// NewService wires the eligibility engine. Metrics and logger may be nil.
func NewService(repo Repository, tx txRunner, auditSvc auditRecorder, m *metrics.EligibilityMetrics, cfg config.EligibilityConfig, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("eligibility repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		audit:   auditSvc,
		metrics: m,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Recalculate recomputes amounts and state for one milestone inside the
// caller's transaction. The machine path never errors on an invalid computed
// transition: it keeps the stored state, counts the anomaly, and moves on so
// an automatic recalculation can never brick a payment record. The unblocked
// event is the one exception and always falls through to the candidate.
func (s *service) Recalculate(ctx context.Context, tx *gorm.DB, event StateChanged) (*models.PaymentEligibility, error) {
	if event.MilestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	if event.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if event.EventType != enums.EligibilityEventRecalculated && event.EventType != enums.EligibilityEventUnblocked {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported recalculation event type")
	}

	repo := s.repo.WithTx(tx)

	milestone, err := repo.findMilestone(ctx, event.MilestoneID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
	}

	record, err := repo.findForUpdate(ctx, event.MilestoneID)
	created := false
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load eligibility record")
		}
		record = &models.PaymentEligibility{
			MilestoneID: event.MilestoneID,
			State:       enums.EligibilityStateNotDue,
		}
		created = true
	}

	before := snapshotOf(record)
	amounts := computeAmounts(milestone)
	candidate := candidateState(milestone)

	final := candidate
	machine := event.EventType == enums.EligibilityEventRecalculated
	switch {
	case machine && record.State.IsSticky():
		// A human override is never cleared by automatic recalculation.
		final = record.State
	case machine && !canTransition(record.State, candidate):
		final = record.State
		s.metrics.IncStateRetained(record.State.String(), candidate.String())
		s.warnRetained(ctx, event.MilestoneID, record.State, candidate)
	}

	applyAmounts(record, amounts, final)

	if created {
		if err := repo.create(ctx, record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create eligibility record")
		}
	} else if err := repo.save(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save eligibility record")
	}

	trail := newTrailEvent(record, event, before.State, before.EligibleAmount)
	if err := repo.appendEvent(ctx, trail); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append eligibility event")
	}

	if machine {
		if _, err := s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   milestone.ProjectID,
			ActorUserID: event.ActorUserID,
			ActorRole:   event.ActorRole,
			Action:      enums.AuditActionEligibilityRecalculated,
			EntityType:  "payment_eligibility",
			EntityID:    record.ID,
			Before:      before,
			After:       snapshotOf(record),
		}); err != nil {
			return nil, err
		}
	}

	s.metrics.IncRecalculation(string(event.EventType))
	return record, nil
}

func (s *service) Block(ctx context.Context, input BlockInput) (*models.PaymentEligibility, error) {
	if input.MilestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleOwner && input.ActorRole != enums.ActorRolePMC {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot block payments")
	}
	if !input.ReasonCode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid block reason code")
	}
	if strings.TrimSpace(input.Explanation) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeReasonRequired, "block explanation required")
	}

	var record *models.PaymentEligibility
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		milestone, err := repo.findMilestone(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
		}

		record, err = repo.findForUpdate(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "eligibility record not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load eligibility record")
		}

		if record.State == enums.EligibilityStateBlocked {
			s.metrics.IncHumanAction("block", "rejected")
			return pkgerrors.New(pkgerrors.CodeConflict, "payment is already blocked")
		}
		if !canTransition(record.State, enums.EligibilityStateBlocked) {
			s.metrics.IncHumanAction("block", "rejected")
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment cannot be blocked in its current state")
		}

		before := snapshotOf(record)
		now := time.Now().UTC()
		reasonCode := input.ReasonCode
		explanation := input.Explanation

		record.State = enums.EligibilityStateBlocked
		record.BlockedAmount = record.EligibleAmount
		record.BlockReasonCode = &reasonCode
		record.BlockExplanation = &explanation
		record.BlockedBy = &input.ActorUserID
		record.BlockedAt = &now

		if err := repo.save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save eligibility record")
		}

		trail := &models.EligibilityEvent{
			EligibilityID: record.ID,
			MilestoneID:   record.MilestoneID,
			EventType:     enums.EligibilityEventBlocked,
			FromState:     before.State,
			ToState:       record.State,
			ActorUserID:   input.ActorUserID,
			ActorRole:     input.ActorRole,
			AmountBefore:  before.EligibleAmount,
			AmountAfter:   record.EligibleAmount,
			ReasonCode:    &reasonCode,
			Reason:        &explanation,
		}
		if err := repo.appendEvent(ctx, trail); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append eligibility event")
		}

		_, err = s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   milestone.ProjectID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Action:      enums.AuditActionPaymentBlocked,
			EntityType:  "payment_eligibility",
			EntityID:    record.ID,
			Before:      before,
			After:       snapshotOf(record),
			Reason:      &explanation,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncHumanAction("block", "applied")
	return record, nil
}

func (s *service) Unblock(ctx context.Context, input UnblockInput) (*models.PaymentEligibility, error) {
	if input.MilestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleOwner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owner can unblock payments")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeReasonRequired, "unblock reason required")
	}

	var record *models.PaymentEligibility
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		milestone, err := repo.findMilestone(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
		}

		current, err := repo.findForUpdate(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "eligibility record not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load eligibility record")
		}
		if current.State != enums.EligibilityStateBlocked {
			s.metrics.IncHumanAction("unblock", "rejected")
			return pkgerrors.New(pkgerrors.CodeConflict, "payment is not blocked")
		}
		before := snapshotOf(current)

		// The unblocked event bypasses stickiness, so the state falls
		// through to whatever the milestone facts now justify.
		record, err = s.Recalculate(ctx, tx, StateChanged{
			MilestoneID: input.MilestoneID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			EventType:   enums.EligibilityEventUnblocked,
			Reason:      &reason,
		})
		if err != nil {
			return err
		}

		_, err = s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   milestone.ProjectID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Action:      enums.AuditActionPaymentUnblocked,
			EntityType:  "payment_eligibility",
			EntityID:    record.ID,
			Before:      before,
			After:       snapshotOf(record),
			Reason:      &reason,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncHumanAction("unblock", "applied")
	return record, nil
}

func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) (*models.PaymentEligibility, error) {
	if input.MilestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleOwner && input.ActorRole != enums.ActorRolePMC {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot mark payments paid")
	}
	explanation := strings.TrimSpace(input.Explanation)
	if explanation == "" {
		return nil, pkgerrors.New(pkgerrors.CodeReasonRequired, "paid explanation required")
	}

	var record *models.PaymentEligibility
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		milestone, err := repo.findMilestone(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
		}

		record, err = repo.findForUpdate(ctx, input.MilestoneID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "eligibility record not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load eligibility record")
		}

		switch {
		case record.State == enums.EligibilityStateMarkedPaid:
			s.metrics.IncHumanAction("mark_paid", "rejected")
			return pkgerrors.New(pkgerrors.CodeConflict, "payment is already marked paid")
		case record.State == enums.EligibilityStateBlocked:
			s.metrics.IncHumanAction("mark_paid", "rejected")
			return pkgerrors.New(pkgerrors.CodeStateConflict, "unblock the payment before marking it paid")
		case !canTransition(record.State, enums.EligibilityStateMarkedPaid):
			s.metrics.IncHumanAction("mark_paid", "rejected")
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not yet eligible")
		}

		before := snapshotOf(record)
		now := time.Now().UTC()

		record.State = enums.EligibilityStateMarkedPaid
		record.BlockedAmount = decimal.Zero
		record.PaidExplanation = &explanation
		record.PaidMarkedBy = &input.ActorUserID
		record.PaidMarkedAt = &now

		if err := repo.save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save eligibility record")
		}

		trail := &models.EligibilityEvent{
			EligibilityID: record.ID,
			MilestoneID:   record.MilestoneID,
			EventType:     enums.EligibilityEventMarkedPaid,
			FromState:     before.State,
			ToState:       record.State,
			ActorUserID:   input.ActorUserID,
			ActorRole:     input.ActorRole,
			AmountBefore:  before.EligibleAmount,
			AmountAfter:   record.EligibleAmount,
			Reason:        &explanation,
		}
		if err := repo.appendEvent(ctx, trail); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append eligibility event")
		}

		_, err = s.audit.Record(ctx, tx, audit.RecordEntryInput{
			ProjectID:   milestone.ProjectID,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
			Action:      enums.AuditActionPaymentMarkedPaid,
			EntityType:  "payment_eligibility",
			EntityID:    record.ID,
			Before:      before,
			After:       snapshotOf(record),
			Reason:      &explanation,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncHumanAction("mark_paid", "applied")
	return record, nil
}

func (s *service) Get(ctx context.Context, milestoneID uuid.UUID) (*View, error) {
	if milestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id required")
	}

	record, err := s.repo.FindByMilestone(ctx, milestoneID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "eligibility record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load eligibility record")
	}

	events, err := s.repo.ListEvents(ctx, record.ID, recentEventsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list eligibility events")
	}

	return &View{
		Record:    record,
		Indicator: DeriveIndicator(snapshotView(record), time.Now().UTC(), s.cfg),
		Events:    events,
	}, nil
}

// applyAmounts writes the final state and recomputed figures onto the record.
// The block and paid field groups are cleared whenever the state leaves them
// so at most one group is ever populated.
func applyAmounts(record *models.PaymentEligibility, amounts Amounts, final enums.EligibilityState) {
	record.State = final
	record.EligibleAmount = amounts.Eligible
	record.AdvanceAmount = amounts.Advance
	record.RemainingAmount = amounts.Remaining
	record.BoqValueCompleted = amounts.BoqCompleted
	record.DueDate = amounts.DueDate

	if final == enums.EligibilityStateBlocked {
		record.BlockedAmount = amounts.Eligible
	} else {
		record.BlockedAmount = decimal.Zero
		record.BlockReasonCode = nil
		record.BlockExplanation = nil
		record.BlockedBy = nil
		record.BlockedAt = nil
	}
	if final != enums.EligibilityStateMarkedPaid {
		record.PaidExplanation = nil
		record.PaidMarkedBy = nil
		record.PaidMarkedAt = nil
	}
}

func snapshotOf(record *models.PaymentEligibility) stateSnapshot {
	return stateSnapshot{
		State:          record.State,
		EligibleAmount: record.EligibleAmount,
		BlockedAmount:  record.BlockedAmount,
	}
}

func snapshotView(record *models.PaymentEligibility) Snapshot {
	return Snapshot{
		State:          record.State,
		EligibleAmount: record.EligibleAmount,
		BlockedAmount:  record.BlockedAmount,
		DueDate:        record.DueDate,
	}
}

func (s *service) warnRetained(ctx context.Context, milestoneID uuid.UUID, stored, candidate enums.EligibilityState) {
	if s.log == nil {
		return
	}
	ctx = s.log.WithMilestoneID(ctx, milestoneID.String())
	ctx = s.log.WithFields(ctx, map[string]any{
		"stored_state":    stored.String(),
		"candidate_state": candidate.String(),
	})
	s.log.Warn(ctx, "eligibility state retained on invalid computed transition")
}
