package eligibility

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
)

// Repository persists eligibility records and their event trail. The
// unexported mutators keep every write path inside this package: no other
// component can implement the interface or reach the write methods, which is
// what makes the engine the single writer of payment state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.PaymentEligibility, error)
	ListEvents(ctx context.Context, eligibilityID uuid.UUID, limit int) ([]models.EligibilityEvent, error)

	findMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, error)
	findForUpdate(ctx context.Context, milestoneID uuid.UUID) (*models.PaymentEligibility, error)
	create(ctx context.Context, record *models.PaymentEligibility) error
	save(ctx context.Context, record *models.PaymentEligibility) error
	appendEvent(ctx context.Context, event *models.EligibilityEvent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an eligibility repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.PaymentEligibility, error) {
	var record models.PaymentEligibility
	err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListEvents(ctx context.Context, eligibilityID uuid.UUID, limit int) ([]models.EligibilityEvent, error) {
	query := r.db.WithContext(ctx).
		Where("eligibility_id = ?", eligibilityID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var events []models.EligibilityEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) findMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	err := r.db.WithContext(ctx).
		Where("id = ?", milestoneID).
		First(&milestone).Error
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *repository) findForUpdate(ctx context.Context, milestoneID uuid.UUID) (*models.PaymentEligibility, error) {
	var record models.PaymentEligibility
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("milestone_id = ?", milestoneID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) create(ctx context.Context, record *models.PaymentEligibility) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) save(ctx context.Context, record *models.PaymentEligibility) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) appendEvent(ctx context.Context, event *models.EligibilityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
