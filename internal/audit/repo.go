package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

// ListFilters narrows audit queries; zero values mean "no filter".
type ListFilters struct {
	EntityType  string
	EntityID    uuid.UUID
	ActorUserID uuid.UUID
	From        *time.Time
	To          *time.Time
}

// Repository manages persistence for audit log entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.AuditLogEntry, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.AuditLogEntry, string, error) {
	query := r.db.WithContext(ctx).
		Where("project_id = ?", projectID)

	if filters.EntityType != "" {
		query = query.Where("entity_type = ?", filters.EntityType)
	}
	if filters.EntityID != uuid.Nil {
		query = query.Where("entity_id = ?", filters.EntityID)
	}
	if filters.ActorUserID != uuid.Nil {
		query = query.Where("actor_user_id = ?", filters.ActorUserID)
	}
	if filters.From != nil {
		query = query.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("created_at <= ?", *filters.To)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var entries []models.AuditLogEntry
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&entries).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, nextCursor, nil
}
