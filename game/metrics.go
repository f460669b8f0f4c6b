package game

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the lobby's prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	peers       prometheus.Gauge
	transitions *prometheus.CounterVec
	violations  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	barrierWait *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kartlobby",
			Subsystem: "session",
			Name:      "peers",
			Help:      "Connected peers with an assigned identity.",
		}),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartlobby",
				Subsystem: "session",
				Name:      "phase_transitions_total",
				Help:      "Phase transitions taken.",
			},
			[]string{"from", "to"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartlobby",
				Name:      "protocol_violations_total",
				Help:      "Dropped malformed or out-of-phase messages.",
			},
			[]string{"reason"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartlobby",
				Name:      "kart_rejections_total",
				Help:      "Kart claims refused by the host.",
			},
			[]string{"reason"},
		),
		barrierWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kartlobby",
				Subsystem: "barrier",
				Name:      "wait_seconds",
				Help:      "Time from arming a barrier to its completion.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"phase"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.peers, m.transitions, m.violations, m.rejections, m.barrierWait)
	}
	return m
}

func (m *Metrics) setPeers(n int) {
	if m == nil {
		return
	}
	m.peers.Set(float64(n))
}

func (m *Metrics) transition(from, to Phase) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (m *Metrics) violation(reason string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(reason).Inc()
}

func (m *Metrics) rejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) barrierDone(phase Phase, waited time.Duration) {
	if m == nil {
		return
	}
	m.barrierWait.WithLabelValues(phase.String()).Observe(waited.Seconds())
}
