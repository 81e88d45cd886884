package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// Milestone is a contracted unit of work tracked through the delivery
// lifecycle. The State column is written only by the lifecycle state machine.
type Milestone struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID      uuid.UUID            `gorm:"column:project_id;type:uuid;not null;index"`
	Title          string               `gorm:"column:title;not null"`
	Description    *string              `gorm:"column:description"`
	Value          decimal.Decimal      `gorm:"column:value;type:numeric(14,2);not null"`
	AdvancePercent decimal.Decimal      `gorm:"column:advance_percent;type:numeric(5,2);not null;default:0"`
	IsExtra        bool                 `gorm:"column:is_extra;not null;default:false"`
	State          enums.MilestoneState `gorm:"column:state;type:milestone_state_enum;not null;default:'draft'"`

	PlannedStartDate *time.Time `gorm:"column:planned_start_date"`
	PlannedEndDate   *time.Time `gorm:"column:planned_end_date"`
	StartedAt        *time.Time `gorm:"column:started_at"`
	SubmittedAt      *time.Time `gorm:"column:submitted_at"`
	VerifiedAt       *time.Time `gorm:"column:verified_at"`
	ClosedAt         *time.Time `gorm:"column:closed_at"`

	Transitions []MilestoneTransition `gorm:"foreignKey:MilestoneID;constraint:OnDelete:CASCADE"`
	Evidence    []Evidence            `gorm:"foreignKey:MilestoneID;constraint:OnDelete:CASCADE"`
	Eligibility *PaymentEligibility   `gorm:"foreignKey:MilestoneID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
