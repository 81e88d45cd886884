package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestEligibilityMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEligibilityMetrics(reg)

	metrics.IncRecalculation("recalculated")
	metrics.IncRecalculation("recalculated")
	metrics.IncStateRetained("marked_paid", "not_due")
	metrics.IncHumanAction("block", "success")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "eligibility_recalculations_total", "event_type", "recalculated"); err != nil {
		t.Fatalf("fetch recalculations: %v", err)
	} else if got != 2 {
		t.Fatalf("expected recalculations=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "eligibility_state_retained_total", "from_state", "marked_paid"); err != nil {
		t.Fatalf("fetch retained: %v", err)
	} else if got != 1 {
		t.Fatalf("expected retained=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "eligibility_human_actions_total", "action", "block"); err != nil {
		t.Fatalf("fetch human actions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected human actions=1, got %f", got)
	}
}

func TestEligibilityMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewEligibilityMetrics(nil)
	metrics.IncRecalculation("recalculated")
	metrics.IncStateRetained("blocked", "not_due")
	metrics.IncHumanAction("unblock", "rejected")

	var nilMetrics *EligibilityMetrics
	nilMetrics.IncRecalculation("recalculated")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
