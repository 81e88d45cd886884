package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// Evidence is a vendor's claim of milestone completion. Frozen is set at
// creation and never cleared; after the single review the row is immutable.
type Evidence struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MilestoneID     uuid.UUID            `gorm:"column:milestone_id;type:uuid;not null;index"`
	SubmittedBy     uuid.UUID            `gorm:"column:submitted_by;type:uuid;not null"`
	ProgressPercent decimal.Decimal      `gorm:"column:progress_percent;type:numeric(5,2);not null;default:0"`
	Remarks         *string              `gorm:"column:remarks"`
	Attachments     json.RawMessage      `gorm:"column:attachments;type:jsonb"`
	Status          enums.EvidenceStatus `gorm:"column:status;type:evidence_status_enum;not null;default:'submitted'"`
	Frozen          bool                 `gorm:"column:frozen;not null;default:true"`
	ReviewNote      *string              `gorm:"column:review_note"`
	ReviewedBy      *uuid.UUID           `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time           `gorm:"column:reviewed_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}
