package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// AuditLogEntry is the project-scoped immutable record covering every
// mutating action system-wide. Rows are only ever inserted.
type AuditLogEntry struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID   uuid.UUID         `gorm:"column:project_id;type:uuid;not null;index"`
	ActorUserID uuid.UUID         `gorm:"column:actor_user_id;type:uuid;not null;index"`
	ActorRole   enums.ActorRole   `gorm:"column:actor_role;type:actor_role_enum;not null"`
	Action      enums.AuditAction `gorm:"column:action;type:audit_action_enum;not null"`
	EntityType  string            `gorm:"column:entity_type;not null"`
	EntityID    uuid.UUID         `gorm:"column:entity_id;type:uuid;not null;index"`
	Before      json.RawMessage   `gorm:"column:before;type:jsonb"`
	After       json.RawMessage   `gorm:"column:after;type:jsonb"`
	Reason      *string           `gorm:"column:reason"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}
