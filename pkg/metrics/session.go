package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics is the Prometheus instrumentation surface for one engine
// process, shared across every Session it runs: one struct of pre-registered
// collectors, built once via promauto.With(reg), with nil-receiver methods
// so a nil *SessionMetrics (metrics disabled) is always safe to call.
type SessionMetrics struct {
	transitions   *prometheus.CounterVec
	activeGauge   prometheus.Gauge
	heartbeatGap  *prometheus.HistogramVec
	sequenceGaps  *prometheus.CounterVec
	storeOpLatency *prometheus.HistogramVec
	storeOpErrors *prometheus.CounterVec
}

// NewSessionMetrics returns a SessionMetrics registered against the active
// registry, or nil if metrics are disabled (InitRegistry was never called).
func NewSessionMetrics() *SessionMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &SessionMetrics{
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixengine_session_transitions_total",
				Help: "Total number of session state machine transitions, by from/to state",
			},
			[]string{"from", "to"},
		),
		activeGauge: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fixengine_sessions_active",
				Help: "Number of sessions currently in the Active state",
			},
		),
		heartbeatGap: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fixengine_heartbeat_interval_seconds",
				Help:    "Observed interval between consecutive outbound sends, by session",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"session_id"},
		),
		sequenceGaps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixengine_sequence_gaps_total",
				Help: "Total number of inbound sequence gaps detected, by session",
			},
			[]string{"session_id"},
		),
		storeOpLatency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fixengine_store_operation_duration_seconds",
				Help:    "Latency of message store operations, by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeOpErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixengine_store_operation_errors_total",
				Help: "Total number of failed message store operations, by operation",
			},
			[]string{"operation"},
		),
	}
}

// RecordTransition records one state machine move and updates the active
// session gauge when either endpoint is the Active state.
func (m *SessionMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
	switch {
	case to == "Active":
		m.activeGauge.Inc()
	case from == "Active":
		m.activeGauge.Dec()
	}
}

// RecordHeartbeatInterval records the observed gap between two outbound
// sends for sessionID.
func (m *SessionMetrics) RecordHeartbeatInterval(sessionID string, d time.Duration) {
	if m == nil {
		return
	}
	m.heartbeatGap.WithLabelValues(sessionID).Observe(d.Seconds())
}

// RecordSequenceGap records one detected inbound sequence gap for sessionID.
func (m *SessionMetrics) RecordSequenceGap(sessionID string) {
	if m == nil {
		return
	}
	m.sequenceGaps.WithLabelValues(sessionID).Inc()
}

// RecordStoreOp records the latency of a message store operation and, when
// err is non-nil, increments the corresponding error counter.
func (m *SessionMetrics) RecordStoreOp(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeOpLatency.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.storeOpErrors.WithLabelValues(operation).Inc()
	}
}
