package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts gateway outcomes. A nil *Metrics records nothing.
type Metrics struct {
	calls        *prometheus.CounterVec
	relogins     *prometheus.CounterVec
	terminations *prometheus.CounterVec
}

// NewMetrics creates the gateway collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "micromanager",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Authenticated calls by final state.",
		}, []string{"state"}),
		relogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "micromanager",
			Subsystem: "gateway",
			Name:      "relogins_total",
			Help:      "Silent re-login attempts by result.",
		}, []string{"result"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "micromanager",
			Subsystem: "gateway",
			Name:      "session_terminations_total",
			Help:      "Session terminations by event kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.relogins, m.terminations)
	}
	return m
}

func (m *Metrics) call(final State) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(final.String()).Inc()
}

func (m *Metrics) relogin(result string) {
	if m == nil {
		return
	}
	m.relogins.WithLabelValues(result).Inc()
}

func (m *Metrics) termination(kind EventKind) {
	if m == nil {
		return
	}
	m.terminations.WithLabelValues(string(kind)).Inc()
}
