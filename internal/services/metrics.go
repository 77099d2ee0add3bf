package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the data service collectors
type Metrics struct {
	writes     *prometheus.CounterVec
	fetches    *prometheus.CounterVec
	replays    *prometheus.CounterVec
	queueDepth prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portfolio_hub",
				Subsystem: "data",
				Name:      "writes_total",
				Help:      "Mutations by entity kind, operation and sync state.",
			},
			[]string{"kind", "op", "state"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portfolio_hub",
				Subsystem: "data",
				Name:      "fetches_total",
				Help:      "Remote fetches by entity kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portfolio_hub",
				Subsystem: "sync",
				Name:      "replays_total",
				Help:      "Replayed pending writes by outcome.",
			},
			[]string{"outcome"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "portfolio_hub",
				Subsystem: "sync",
				Name:      "pending_writes",
				Help:      "Writes waiting in the reconciliation queue.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.writes, m.fetches, m.replays, m.queueDepth)
	}
	return m
}

func (m *Metrics) write(kind, op string, state SyncState) {
	m.writes.WithLabelValues(kind, op, string(state)).Inc()
}

func (m *Metrics) fetch(kind string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "fallback"
	}
	m.fetches.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) replay(outcome string) {
	m.replays.WithLabelValues(outcome).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}
