package enums

import "fmt"

// MilestoneState maps to the milestone_state_enum enum in Postgres.
type MilestoneState string

const (
	MilestoneStateDraft      MilestoneState = "draft"
	MilestoneStateInProgress MilestoneState = "in_progress"
	MilestoneStateSubmitted  MilestoneState = "submitted"
	MilestoneStateVerified   MilestoneState = "verified"
	MilestoneStateClosed     MilestoneState = "closed"
)

var validMilestoneStates = []MilestoneState{
	MilestoneStateDraft,
	MilestoneStateInProgress,
	MilestoneStateSubmitted,
	MilestoneStateVerified,
	MilestoneStateClosed,
}

// String implements fmt.Stringer.
func (s MilestoneState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known MilestoneState.
func (s MilestoneState) IsValid() bool {
	for _, candidate := range validMilestoneStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state has no outgoing lifecycle edges.
func (s MilestoneState) IsTerminal() bool {
	return s == MilestoneStateClosed
}

// ParseMilestoneState converts raw input into a MilestoneState.
func ParseMilestoneState(value string) (MilestoneState, error) {
	for _, candidate := range validMilestoneStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid milestone state %q", value)
}
