package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the owning aggregate for milestones and audit history.
type Project struct {
	ID          uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string      `gorm:"column:name;not null"`
	Description *string     `gorm:"column:description"`
	OwnerUserID uuid.UUID   `gorm:"column:owner_user_id;type:uuid;not null"`
	Milestones  []Milestone `gorm:"foreignKey:ProjectID"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}
