package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records outcomes and latency for the settlement
// pipeline operations (register, validate, payment request, batch).
type SettlementMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	failure   *prometheus.CounterVec
	inventory *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_op_duration_seconds",
		Help:    "Duration of settlement operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_op_success",
		Help: "Successful settlement operations.",
	}, []string{"op"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_op_failure",
		Help: "Failed settlement operations.",
	}, []string{"op", "code"})
	inventory := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_lookup_outcomes",
		Help: "Inventory registry lookup outcomes.",
	}, []string{"outcome"})
	reg.MustRegister(duration, success, failure, inventory)
	return &SettlementMetrics{
		duration:  duration,
		success:   success,
		failure:   failure,
		inventory: inventory,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *SettlementMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *SettlementMetrics) IncSuccess(op string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation and error code.
func (m *SettlementMetrics) IncFailure(op, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(op), normalizeLabel(code)).Inc()
}

// IncInventoryOutcome counts one registry lookup result (verified, not_found, unverified).
func (m *SettlementMetrics) IncInventoryOutcome(outcome string) {
	if m == nil || m.inventory == nil {
		return
	}
	m.inventory.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
