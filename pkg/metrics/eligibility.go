package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// EligibilityMetrics records recalculation outcomes for the payment engine.
// StateRetained in particular is the only visibility into the engine's
// degrade-safe path, where an invalid computed transition keeps the stored
// state instead of erroring.
type EligibilityMetrics struct {
	recalculations *prometheus.CounterVec
	stateRetained  *prometheus.CounterVec
	humanActions   *prometheus.CounterVec
}

// NewEligibilityMetrics registers the eligibility metrics on the provided registerer.
func NewEligibilityMetrics(reg prometheus.Registerer) *EligibilityMetrics {
	if reg == nil {
		return &EligibilityMetrics{}
	}
	recalculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_recalculations_total",
		Help: "Eligibility recalculations by trigger event type.",
	}, []string{"event_type"})
	stateRetained := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_state_retained_total",
		Help: "Recalculations that kept the stored state because the computed transition was invalid.",
	}, []string{"from_state", "to_state"})
	humanActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_human_actions_total",
		Help: "Human block/unblock/mark-paid actions by outcome.",
	}, []string{"action", "outcome"})
	reg.MustRegister(recalculations, stateRetained, humanActions)
	return &EligibilityMetrics{
		recalculations: recalculations,
		stateRetained:  stateRetained,
		humanActions:   humanActions,
	}
}

// IncRecalculation counts one recalculation for the given trigger event type.
func (m *EligibilityMetrics) IncRecalculation(eventType string) {
	if m == nil || m.recalculations == nil {
		return
	}
	m.recalculations.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncStateRetained counts one silently retained state.
func (m *EligibilityMetrics) IncStateRetained(fromState, toState string) {
	if m == nil || m.stateRetained == nil {
		return
	}
	m.stateRetained.WithLabelValues(normalizeLabel(fromState), normalizeLabel(toState)).Inc()
}

// IncHumanAction counts one human action attempt with its outcome.
func (m *EligibilityMetrics) IncHumanAction(action, outcome string) {
	if m == nil || m.humanActions == nil {
		return
	}
	m.humanActions.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
