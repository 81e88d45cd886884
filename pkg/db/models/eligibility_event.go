package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// EligibilityEvent records one immutable eligibility state change, machine or
// human. Append-only; ordered by creation time per eligibility record.
type EligibilityEvent struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EligibilityID uuid.UUID                  `gorm:"column:eligibility_id;type:uuid;not null;index"`
	MilestoneID   uuid.UUID                  `gorm:"column:milestone_id;type:uuid;not null;index"`
	EventType     enums.EligibilityEventType `gorm:"column:event_type;type:eligibility_event_type_enum;not null"`
	FromState     enums.EligibilityState     `gorm:"column:from_state;type:eligibility_state_enum;not null"`
	ToState       enums.EligibilityState     `gorm:"column:to_state;type:eligibility_state_enum;not null"`
	ActorUserID   uuid.UUID                  `gorm:"column:actor_user_id;type:uuid;not null"`
	ActorRole     enums.ActorRole            `gorm:"column:actor_role;type:actor_role_enum;not null"`
	AmountBefore  decimal.Decimal            `gorm:"column:amount_before;type:numeric(14,2);not null;default:0"`
	AmountAfter   decimal.Decimal            `gorm:"column:amount_after;type:numeric(14,2);not null;default:0"`

	ReasonCode *enums.BlockReason `gorm:"column:reason_code;type:block_reason_enum"`
	Reason     *string            `gorm:"column:reason"`

	TriggerEntityType *string    `gorm:"column:trigger_entity_type"`
	TriggerEntityID   *uuid.UUID `gorm:"column:trigger_entity_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
