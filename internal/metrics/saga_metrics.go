package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SagaMetrics содержит метрики саги создания заказа.
type SagaMetrics struct {
	sagaStarted   prometheus.Counter
	sagaCompleted prometheus.Counter
	// sagaFailed размечен видом ошибки (domain.ErrorKind).
	sagaFailed *prometheus.CounterVec

	sagaDuration prometheus.Histogram
	stepDuration *prometheus.HistogramVec

	// Сбои шагов после фиксации заказа (очистка корзины, уведомление).
	bestEffortFailures *prometheus.CounterVec
	// Деньги списаны, а заказ не записан.
	reconciliationHazards prometheus.Counter

	activeSagas prometheus.Gauge
}

// NewSagaMetrics регистрирует метрики в глобальном registry.
func NewSagaMetrics() *SagaMetrics {
	return NewSagaMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSagaMetricsWithRegisterer регистрирует метрики в указанном registry.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewSagaMetricsWithRegisterer(registerer prometheus.Registerer) *SagaMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SagaMetrics{
		sagaStarted: register(registerer, "orders_saga_started_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_saga_started_total",
			Help: "Total number of create-order sagas started",
		})),
		sagaCompleted: register(registerer, "orders_saga_completed_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_saga_completed_total",
			Help: "Total number of create-order sagas completed successfully",
		})),
		sagaFailed: register(registerer, "orders_saga_failed_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_saga_failed_total",
			Help: "Total number of create-order sagas failed, by error kind",
		}, []string{"kind"})),
		sagaDuration: register(registerer, "orders_saga_duration_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orders_saga_duration_seconds",
			Help:    "Duration of create-order sagas in seconds",
			Buckets: prometheus.DefBuckets,
		})),
		stepDuration: register(registerer, "orders_saga_step_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orders_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"step"})),
		bestEffortFailures: register(registerer, "orders_best_effort_failures_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_best_effort_failures_total",
			Help: "Failures of post-commit steps that do not affect the order outcome",
		}, []string{"step"})),
		reconciliationHazards: register(registerer, "orders_reconciliation_hazards_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_reconciliation_hazards_total",
			Help: "Payments captured without a persisted order, or with unknown outcome",
		})),
		activeSagas: register(registerer, "orders_active_sagas", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orders_active_sagas",
			Help: "Number of create-order sagas in flight",
		})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// RecordSagaStarted увеличивает счётчик запущенных саг и число активных.
func (m *SagaMetrics) RecordSagaStarted() {
	m.sagaStarted.Inc()
	m.activeSagas.Inc()
}

// RecordSagaCompleted фиксирует успешное завершение саги.
func (m *SagaMetrics) RecordSagaCompleted(duration time.Duration) {
	m.sagaCompleted.Inc()
	m.finish(duration)
}

// RecordSagaFailed фиксирует неудачу саги с видом ошибки kind.
func (m *SagaMetrics) RecordSagaFailed(kind string, duration time.Duration) {
	m.sagaFailed.WithLabelValues(kind).Inc()
	m.finish(duration)
}

func (m *SagaMetrics) finish(duration time.Duration) {
	m.activeSagas.Dec()
	m.sagaDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага саги.
func (m *SagaMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordBestEffortFailure увеличивает счётчик сбоев шага step после фиксации заказа.
func (m *SagaMetrics) RecordBestEffortFailure(step string) {
	m.bestEffortFailures.WithLabelValues(step).Inc()
}

// RecordReconciliationHazard увеличивает счётчик ситуаций, требующих ручной сверки.
func (m *SagaMetrics) RecordReconciliationHazard() {
	m.reconciliationHazards.Inc()
}
