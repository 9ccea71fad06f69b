package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewSagaMetricsWithRegisterer_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSagaMetricsWithRegisterer(reg)

	m.RecordSagaStarted()
	m.RecordSagaFailed("payment_failed", time.Second)
	m.RecordStepDuration("paying", 10*time.Millisecond)
	m.RecordBestEffortFailure("clearing_cart")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"orders_saga_started_total",
		"orders_saga_completed_total",
		"orders_saga_failed_total",
		"orders_saga_duration_seconds",
		"orders_saga_step_duration_seconds",
		"orders_best_effort_failures_total",
		"orders_reconciliation_hazards_total",
		"orders_active_sagas",
	} {
		if !names[want] {
			t.Errorf("metric %s is not registered", want)
		}
	}
}

func TestNewSagaMetricsWithRegisterer_ReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewSagaMetricsWithRegisterer(reg)
	second := NewSagaMetricsWithRegisterer(reg)

	first.RecordReconciliationHazard()
	second.RecordReconciliationHazard()

	if got := testutil.ToFloat64(first.reconciliationHazards); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestSagaLifecycleMetrics(t *testing.T) {
	m := NewSagaMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordSagaStarted()
	m.RecordSagaStarted()
	if got := testutil.ToFloat64(m.activeSagas); got != 2 {
		t.Fatalf("expected 2 active sagas, got %v", got)
	}

	m.RecordSagaCompleted(100 * time.Millisecond)
	m.RecordSagaFailed("insufficient_stock", 50*time.Millisecond)

	if got := testutil.ToFloat64(m.activeSagas); got != 0 {
		t.Fatalf("expected 0 active sagas, got %v", got)
	}
	if got := testutil.ToFloat64(m.sagaCompleted); got != 1 {
		t.Fatalf("expected 1 completed saga, got %v", got)
	}
	if got := testutil.ToFloat64(m.sagaFailed.WithLabelValues("insufficient_stock")); got != 1 {
		t.Fatalf("expected 1 failed saga, got %v", got)
	}

	var metric dto.Metric
	if err := m.sagaDuration.Write(&metric); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected 2 duration samples, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestRecordBestEffortFailure(t *testing.T) {
	m := NewSagaMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordBestEffortFailure("notifying")
	m.RecordBestEffortFailure("notifying")
	m.RecordBestEffortFailure("clearing_cart")

	if got := testutil.ToFloat64(m.bestEffortFailures.WithLabelValues("notifying")); got != 2 {
		t.Fatalf("expected 2 notify failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.bestEffortFailures.WithLabelValues("clearing_cart")); got != 1 {
		t.Fatalf("expected 1 cart failure, got %v", got)
	}
}
