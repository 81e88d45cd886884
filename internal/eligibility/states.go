package eligibility

import "github.com/rafaelquintero/sitepay-backend/pkg/enums"

// transitionTable is the only legal movement between eligibility states.
// marked_paid has no outgoing edges; blocked can only fall back to an
// eligible state once a human clears it.
var transitionTable = map[enums.EligibilityState][]enums.EligibilityState{
	enums.EligibilityStateNotDue: {
		enums.EligibilityStateDuePendingVerification,
		enums.EligibilityStateVerifiedNotEligible,
		enums.EligibilityStatePartiallyEligible,
		enums.EligibilityStateFullyEligible,
	},
	enums.EligibilityStateDuePendingVerification: {
		enums.EligibilityStateVerifiedNotEligible,
		enums.EligibilityStatePartiallyEligible,
		enums.EligibilityStateFullyEligible,
	},
	enums.EligibilityStateVerifiedNotEligible: {
		enums.EligibilityStatePartiallyEligible,
		enums.EligibilityStateFullyEligible,
	},
	enums.EligibilityStatePartiallyEligible: {
		enums.EligibilityStateFullyEligible,
		enums.EligibilityStateBlocked,
		enums.EligibilityStateMarkedPaid,
	},
	enums.EligibilityStateFullyEligible: {
		enums.EligibilityStatePartiallyEligible,
		enums.EligibilityStateBlocked,
		enums.EligibilityStateMarkedPaid,
	},
	enums.EligibilityStateBlocked: {
		enums.EligibilityStatePartiallyEligible,
		enums.EligibilityStateFullyEligible,
	},
	enums.EligibilityStateMarkedPaid: {},
}

// canTransition reports whether moving from one stored state to another is
// permitted by the table. Staying in the same state is always allowed so a
// recalculation that changes nothing remains a no-op instead of an anomaly.
func canTransition(from, to enums.EligibilityState) bool {
	if from == to {
		return true
	}
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
