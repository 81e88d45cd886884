package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// MilestoneTransition records one immutable lifecycle edge. Rows are only
// ever inserted; the ordered sequence per milestone is its full history.
type MilestoneTransition struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MilestoneID uuid.UUID             `gorm:"column:milestone_id;type:uuid;not null;index"`
	FromState   *enums.MilestoneState `gorm:"column:from_state;type:milestone_state_enum"`
	ToState     enums.MilestoneState  `gorm:"column:to_state;type:milestone_state_enum;not null"`
	ActorUserID uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	ActorRole   enums.ActorRole       `gorm:"column:actor_role;type:actor_role_enum;not null"`
	Reason      *string               `gorm:"column:reason"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
