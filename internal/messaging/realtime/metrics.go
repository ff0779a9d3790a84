package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics realtime counters exposed on /metrics
type Metrics struct {
	events   *prometheus.CounterVec
	sessions prometheus.Gauge
	dropped  prometheus.Counter
}

// NewMetrics create the realtime collectors and register them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_realtime_events_total",
			Help: "Events published to user rooms.",
		}, []string{"event"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messaging_realtime_sessions",
			Help: "Socket sessions currently joined to a room.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_realtime_dropped_sessions_total",
			Help: "Sessions removed after a failed write or a full send queue.",
		}),
	}
	reg.MustRegister(m.events, m.sessions, m.dropped)
	return m
}

func (m *Metrics) published(event string) {
	if m != nil {
		m.events.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) joined() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) left() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) drop() {
	if m != nil {
		m.dropped.Inc()
	}
}
