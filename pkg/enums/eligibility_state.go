package enums

import "fmt"

// EligibilityState maps to the eligibility_state_enum enum in Postgres.
//
// The states split into two families: auto-derived states that the
// recalculation engine may move between freely (per its transition table),
// and sticky human-override states (blocked, marked_paid) that only a
// matching human event can enter or leave.
type EligibilityState string

const (
	EligibilityStateNotDue                 EligibilityState = "not_due"
	EligibilityStateDuePendingVerification EligibilityState = "due_pending_verification"
	EligibilityStateVerifiedNotEligible    EligibilityState = "verified_not_eligible"
	EligibilityStatePartiallyEligible      EligibilityState = "partially_eligible"
	EligibilityStateFullyEligible          EligibilityState = "fully_eligible"
	EligibilityStateBlocked                EligibilityState = "blocked"
	EligibilityStateMarkedPaid             EligibilityState = "marked_paid"
)

var validEligibilityStates = []EligibilityState{
	EligibilityStateNotDue,
	EligibilityStateDuePendingVerification,
	EligibilityStateVerifiedNotEligible,
	EligibilityStatePartiallyEligible,
	EligibilityStateFullyEligible,
	EligibilityStateBlocked,
	EligibilityStateMarkedPaid,
}

// String implements fmt.Stringer.
func (s EligibilityState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known EligibilityState.
func (s EligibilityState) IsValid() bool {
	for _, candidate := range validEligibilityStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsSticky reports whether the state was entered by a human override and must
// survive automatic recalculation.
func (s EligibilityState) IsSticky() bool {
	return s == EligibilityStateBlocked || s == EligibilityStateMarkedPaid
}

// IsEligible reports whether the state represents a payable amount.
func (s EligibilityState) IsEligible() bool {
	return s == EligibilityStatePartiallyEligible || s == EligibilityStateFullyEligible
}

// IsTerminal reports whether the state absorbs all further transitions.
func (s EligibilityState) IsTerminal() bool {
	return s == EligibilityStateMarkedPaid
}

// ParseEligibilityState converts raw input into an EligibilityState.
func ParseEligibilityState(value string) (EligibilityState, error) {
	for _, candidate := range validEligibilityStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid eligibility state %q", value)
}
