package enums

import "fmt"

// EligibilityEventType maps to the eligibility_event_type_enum enum in Postgres.
type EligibilityEventType string

const (
	// EligibilityEventRecalculated is the machine-triggered event written on
	// every lifecycle transition and evidence review.
	EligibilityEventRecalculated EligibilityEventType = "recalculated"
	EligibilityEventBlocked      EligibilityEventType = "blocked"
	EligibilityEventUnblocked    EligibilityEventType = "unblocked"
	EligibilityEventMarkedPaid   EligibilityEventType = "marked_paid"
)

var validEligibilityEventTypes = []EligibilityEventType{
	EligibilityEventRecalculated,
	EligibilityEventBlocked,
	EligibilityEventUnblocked,
	EligibilityEventMarkedPaid,
}

// IsValid reports whether the value is a known EligibilityEventType.
func (t EligibilityEventType) IsValid() bool {
	for _, candidate := range validEligibilityEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsHuman reports whether the event originates from an explicit human action
// rather than the recalculation engine.
func (t EligibilityEventType) IsHuman() bool {
	return t != EligibilityEventRecalculated
}

// ParseEligibilityEventType converts raw input into an EligibilityEventType.
func ParseEligibilityEventType(value string) (EligibilityEventType, error) {
	for _, candidate := range validEligibilityEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid eligibility event type %q", value)
}
