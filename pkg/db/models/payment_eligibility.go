package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// PaymentEligibility is the canonical payment record, one per milestone.
// Every monetary figure shown anywhere in the system is read from this row.
// Only the eligibility engine writes it; at most one of the block/paid field
// groups is populated, matching the blocked/marked_paid states.
type PaymentEligibility struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MilestoneID uuid.UUID              `gorm:"column:milestone_id;type:uuid;not null;uniqueIndex"`
	State       enums.EligibilityState `gorm:"column:state;type:eligibility_state_enum;not null;default:'not_due'"`

	EligibleAmount    decimal.Decimal `gorm:"column:eligible_amount;type:numeric(14,2);not null;default:0"`
	BlockedAmount     decimal.Decimal `gorm:"column:blocked_amount;type:numeric(14,2);not null;default:0"`
	AdvanceAmount     decimal.Decimal `gorm:"column:advance_amount;type:numeric(14,2);not null;default:0"`
	RemainingAmount   decimal.Decimal `gorm:"column:remaining_amount;type:numeric(14,2);not null;default:0"`
	BoqValueCompleted decimal.Decimal `gorm:"column:boq_value_completed;type:numeric(14,2);not null;default:0"`
	DueDate           *time.Time      `gorm:"column:due_date"`

	BlockReasonCode  *enums.BlockReason `gorm:"column:block_reason_code;type:block_reason_enum"`
	BlockExplanation *string            `gorm:"column:block_explanation"`
	BlockedBy        *uuid.UUID         `gorm:"column:blocked_by;type:uuid"`
	BlockedAt        *time.Time         `gorm:"column:blocked_at"`

	PaidExplanation *string    `gorm:"column:paid_explanation"`
	PaidMarkedBy    *uuid.UUID `gorm:"column:paid_marked_by;type:uuid"`
	PaidMarkedAt    *time.Time `gorm:"column:paid_marked_at"`

	Events []EligibilityEvent `gorm:"foreignKey:EligibilityID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
