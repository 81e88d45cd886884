package milestones

import "github.com/rafaelquintero/sitepay-backend/pkg/enums"

// adjacency is the fixed lifecycle graph. The single backward edge is the
// rejection of submitted work; closed has no outgoing edges.
var adjacency = map[enums.MilestoneState][]enums.MilestoneState{
	enums.MilestoneStateDraft:      {enums.MilestoneStateInProgress},
	enums.MilestoneStateInProgress: {enums.MilestoneStateSubmitted},
	enums.MilestoneStateSubmitted:  {enums.MilestoneStateVerified, enums.MilestoneStateInProgress},
	enums.MilestoneStateVerified:   {enums.MilestoneStateClosed},
	enums.MilestoneStateClosed:     {},
}

type edge struct {
	from, to enums.MilestoneState
}

var edgeRoles = map[edge][]enums.ActorRole{
	{enums.MilestoneStateDraft, enums.MilestoneStateInProgress}: {
		enums.ActorRoleOwner, enums.ActorRolePMC, enums.ActorRoleVendor,
	},
	{enums.MilestoneStateInProgress, enums.MilestoneStateSubmitted}: {
		enums.ActorRoleVendor,
	},
	{enums.MilestoneStateSubmitted, enums.MilestoneStateVerified}: {
		enums.ActorRoleOwner, enums.ActorRolePMC,
	},
	{enums.MilestoneStateSubmitted, enums.MilestoneStateInProgress}: {
		enums.ActorRoleOwner, enums.ActorRolePMC,
	},
	{enums.MilestoneStateVerified, enums.MilestoneStateClosed}: {
		enums.ActorRoleOwner, enums.ActorRolePMC,
	},
}

// CanTransition reports whether the edge exists in the lifecycle graph,
// independent of who is asking.
func CanTransition(from, to enums.MilestoneState) bool {
	for _, candidate := range adjacency[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedRoles returns the role allow-list for an edge, nil when the edge
// does not exist.
func AllowedRoles(from, to enums.MilestoneState) []enums.ActorRole {
	return edgeRoles[edge{from, to}]
}

// RoleAllowed reports whether the role may drive the edge.
func RoleAllowed(from, to enums.MilestoneState, role enums.ActorRole) bool {
	for _, allowed := range AllowedRoles(from, to) {
		if allowed == role {
			return true
		}
	}
	return false
}

// IsRejection reports whether the edge is the one backward edge, which
// requires a stated reason.
func IsRejection(from, to enums.MilestoneState) bool {
	return from == enums.MilestoneStateSubmitted && to == enums.MilestoneStateInProgress
}

// ValidNextStates filters the adjacency for a state down to the edges the
// given role may drive. Pure; used to pre-validate requests and drive UI
// affordances.
func ValidNextStates(state enums.MilestoneState, role enums.ActorRole) []enums.MilestoneState {
	var out []enums.MilestoneState
	for _, next := range adjacency[state] {
		if RoleAllowed(state, next, role) {
			out = append(out, next)
		}
	}
	return out
}
