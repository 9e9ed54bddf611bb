// Package metrics exposes rate limiting counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts rate limit decisions by endpoint class.
type Metrics struct {
	Checks *prometheus.CounterVec
}

// New registers the rate limit metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_ratelimit_checks_total",
			Help: "Rate limit checks by endpoint class and outcome.",
		}, []string{"class", "outcome"}),
	}
}

// IncrementCheck records one decision. Nil-safe so the limiter works
// without metrics wired.
func (m *Metrics) IncrementCheck(class, outcome string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(class, outcome).Inc()
}
