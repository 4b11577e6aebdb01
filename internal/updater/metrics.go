package updater

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the injected observability sink for processor cycles. A nil
// *Metrics is valid and drops everything, so tests don't need a registry.
type Metrics struct {
	cycleStart     *prometheus.CounterVec
	cycleSuccess   *prometheus.CounterVec
	unexpectedStop *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycleStart: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pluralsync_updater_process_start_total",
			Help: "Processing cycles started, per user.",
		}, []string{"user_id"}),
		cycleSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pluralsync_updater_process_success_total",
			Help: "Processing cycles completed, per user.",
		}, []string{"user_id"}),
		unexpectedStop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pluralsync_updater_process_unexpected_stop_total",
			Help: "Processors that exited without an explicit stop, per user.",
		}, []string{"user_id"}),
	}
	reg.MustRegister(m.cycleStart, m.cycleSuccess, m.unexpectedStop)
	return m
}

func (m *Metrics) CycleStarted(userID string) {
	if m != nil {
		m.cycleStart.WithLabelValues(userID).Inc()
	}
}

func (m *Metrics) CycleSucceeded(userID string) {
	if m != nil {
		m.cycleSuccess.WithLabelValues(userID).Inc()
	}
}

func (m *Metrics) UnexpectedStop(userID string) {
	if m != nil {
		m.unexpectedStop.WithLabelValues(userID).Inc()
	}
}
