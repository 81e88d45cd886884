package milestones

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

// Repository manages persistence for milestones and their transition history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, milestone *models.Milestone) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	FindProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	Save(ctx context.Context, milestone *models.Milestone) error
	ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params) ([]models.Milestone, string, error)
	AppendTransition(ctx context.Context, transition *models.MilestoneTransition) error
	ListTransitions(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneTransition, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a milestone repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, milestone *models.Milestone) error {
	return r.db.WithContext(ctx).Create(milestone).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&milestone).Error; err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&milestone).Error
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *repository) FindProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", projectID).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) Save(ctx context.Context, milestone *models.Milestone) error {
	return r.db.WithContext(ctx).Save(milestone).Error
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params) ([]models.Milestone, string, error) {
	query := r.db.WithContext(ctx).
		Where("project_id = ?", projectID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var milestones []models.Milestone
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&milestones).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(milestones) > limit {
		milestones = milestones[:limit]
		last := milestones[len(milestones)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return milestones, nextCursor, nil
}

func (r *repository) AppendTransition(ctx context.Context, transition *models.MilestoneTransition) error {
	return r.db.WithContext(ctx).Create(transition).Error
}

func (r *repository) ListTransitions(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneTransition, error) {
	var transitions []models.MilestoneTransition
	err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("created_at ASC, id ASC").
		Find(&transitions).Error
	return transitions, err
}
