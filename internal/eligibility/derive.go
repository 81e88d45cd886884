package eligibility

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/pkg/config"
	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

var oneHundred = decimal.NewFromInt(100)

// Amounts is the deterministic money split for one milestone. Everything here
// is computed from milestone facts only, never from who is asking.
type Amounts struct {
	Eligible     decimal.Decimal
	Advance      decimal.Decimal
	Remaining    decimal.Decimal
	BoqCompleted decimal.Decimal
	DueDate      *time.Time
}

// computeAmounts derives the canonical money figures from the milestone row.
// The full contract value becomes eligible once the work is verified or
// closed; before that nothing is owed. The advance split is fixed at creation
// and does not depend on lifecycle progress.
func computeAmounts(m *models.Milestone) Amounts {
	advance := m.Value.Mul(m.AdvancePercent).Div(oneHundred).Round(2)
	out := Amounts{
		Eligible:     decimal.Zero,
		Advance:      advance,
		Remaining:    m.Value.Sub(advance),
		BoqCompleted: decimal.Zero,
		DueDate:      m.PlannedEndDate,
	}
	if m.State == enums.MilestoneStateVerified || m.State == enums.MilestoneStateClosed {
		out.Eligible = m.Value
		out.BoqCompleted = m.Value
	}
	return out
}

// candidateState maps the milestone's lifecycle state to the eligibility
// state the raw facts justify, before stickiness or table validation.
func candidateState(m *models.Milestone) enums.EligibilityState {
	if m.State == enums.MilestoneStateVerified || m.State == enums.MilestoneStateClosed {
		return enums.EligibilityStateFullyEligible
	}
	return enums.EligibilityStateNotDue
}

// Snapshot is the minimal read-only view DeriveIndicator needs. Callers build
// it from a stored eligibility record; the function itself never touches
// storage.
type Snapshot struct {
	State          enums.EligibilityState
	EligibleAmount decimal.Decimal
	BlockedAmount  decimal.Decimal
	DueDate        *time.Time
}

// Indicator is the single display projection of payment status. Every
// presentation surface renders from this and nothing else.
type Indicator struct {
	Code         enums.PaymentIndicator `json:"code"`
	Urgent       bool                   `json:"urgent"`
	DaysUntilDue *int                   `json:"days_until_due,omitempty"`
}

// DeriveIndicator maps a stored snapshot to its indicator. Pure: identical
// inputs always produce identical output.
func DeriveIndicator(snap Snapshot, now time.Time, cfg config.EligibilityConfig) Indicator {
	switch {
	case snap.State == enums.EligibilityStateMarkedPaid:
		return Indicator{Code: enums.PaymentIndicatorPaid}
	case snap.State == enums.EligibilityStateBlocked:
		return Indicator{Code: enums.PaymentIndicatorBlocked, Urgent: true}
	case snap.State.IsEligible():
		if snap.DueDate == nil {
			return Indicator{Code: enums.PaymentIndicatorEligibleNotDue}
		}
		days := daysUntil(now, *snap.DueDate)
		if days < 0 {
			return Indicator{Code: enums.PaymentIndicatorOverdue, Urgent: true, DaysUntilDue: &days}
		}
		if days <= cfg.DueSoonDays {
			return Indicator{
				Code:         enums.PaymentIndicatorEligibleDue,
				Urgent:       days <= cfg.UrgentDays,
				DaysUntilDue: &days,
			}
		}
		return Indicator{Code: enums.PaymentIndicatorEligibleNotDue, DaysUntilDue: &days}
	default:
		return Indicator{Code: enums.PaymentIndicatorNotDue}
	}
}

// daysUntil counts whole calendar days from now to the due date, negative
// when the due date has passed.
func daysUntil(now, due time.Time) int {
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(nowDay).Hours() / 24)
}
