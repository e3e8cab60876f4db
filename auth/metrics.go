package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts session events. A nil *Metrics records nothing.
type Metrics struct {
	refreshes    *prometheus.CounterVec
	unauthorized prometheus.Counter
	forbidden    prometheus.Counter
	coalesced    prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workping",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by result.",
		}, []string{"result"}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workping",
			Subsystem: "auth",
			Name:      "unauthorized_total",
			Help:      "API responses with status 401.",
		}),
		forbidden: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workping",
			Subsystem: "auth",
			Name:      "forbidden_total",
			Help:      "API responses with status 403.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workping",
			Subsystem: "auth",
			Name:      "refresh_coalesced_total",
			Help:      "Refresh requests that waited on an in-flight refresh instead of starting one.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshes, m.unauthorized, m.forbidden, m.coalesced)
	}
	return m
}

func (m *Metrics) refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) unauthorizedSeen() {
	if m != nil {
		m.unauthorized.Inc()
	}
}

func (m *Metrics) forbiddenSeen() {
	if m != nil {
		m.forbidden.Inc()
	}
}

func (m *Metrics) coalescedWait() {
	if m != nil {
		m.coalesced.Inc()
	}
}
