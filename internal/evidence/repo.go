package evidence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// Repository manages persistence for evidence records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.Evidence) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Evidence, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Evidence, error)
	FindMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, error)
	Save(ctx context.Context, record *models.Evidence) error
	CountSubmitted(ctx context.Context, milestoneID uuid.UUID) (int64, error)
	ListByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]models.Evidence, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an evidence repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.Evidence) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Evidence, error) {
	var record models.Evidence
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Evidence, error) {
	var record models.Evidence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := r.db.WithContext(ctx).Where("id = ?", milestoneID).First(&milestone).Error; err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *repository) Save(ctx context.Context, record *models.Evidence) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) CountSubmitted(ctx context.Context, milestoneID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Evidence{}).
		Where("milestone_id = ? AND status = ?", milestoneID, enums.EvidenceStatusSubmitted).
		Count(&count).Error
	return count, err
}

func (r *repository) ListByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]models.Evidence, error) {
	var records []models.Evidence
	err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	return records, err
}
