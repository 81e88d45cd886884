package eligibility

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
)

// StateChanged is the typed fact that prompts a recalculation: a lifecycle
// transition, an evidence review, or a human unblock falling through to the
// machine path. The engine reloads the milestone itself, so the event only
// needs to say what happened and who caused it.
type StateChanged struct {
	MilestoneID       uuid.UUID
	ActorUserID       uuid.UUID
	ActorRole         enums.ActorRole
	EventType         enums.EligibilityEventType
	Reason            *string
	TriggerEntityType string
	TriggerEntityID   uuid.UUID
}

// newTrailEvent builds the append-only trail row for one recalculation.
func newTrailEvent(record *models.PaymentEligibility, event StateChanged, fromState enums.EligibilityState, amountBefore decimal.Decimal) *models.EligibilityEvent {
	trail := &models.EligibilityEvent{
		EligibilityID: record.ID,
		MilestoneID:   record.MilestoneID,
		EventType:     event.EventType,
		FromState:     fromState,
		ToState:       record.State,
		ActorUserID:   event.ActorUserID,
		ActorRole:     event.ActorRole,
		AmountBefore:  amountBefore,
		AmountAfter:   record.EligibleAmount,
		Reason:        event.Reason,
	}
	if event.TriggerEntityType != "" {
		entityType := event.TriggerEntityType
		trail.TriggerEntityType = &entityType
	}
	if event.TriggerEntityID != uuid.Nil {
		entityID := event.TriggerEntityID
		trail.TriggerEntityID = &entityID
	}
	return trail
}
