package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the public access engine.
type Metrics struct {
	// Code requests issued, by channel
	CodesIssued *prometheus.CounterVec

	// Verification outcomes: success, invalid_code, code_expired,
	// too_many_attempts, link_expired, not_found
	VerifyOutcome *prometheus.CounterVec

	// Self-service updates, by result: applied, submitted, forbidden, validation_failed
	Updates *prometheus.CounterVec
}

// New creates a new Metrics instance with all access module metrics registered.
func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_access_codes_issued_total",
			Help: "Total one-time codes issued by delivery channel",
		}, []string{"channel"}),

		VerifyOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_access_verify_outcomes_total",
			Help: "Total code verification attempts by outcome",
		}, []string{"outcome"}),

		Updates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_access_self_service_updates_total",
			Help: "Total self-service update attempts by result",
		}, []string{"result"}),
	}
}

// IncrementCodesIssued records a code issuance on a channel.
func (m *Metrics) IncrementCodesIssued(channel string) {
	if m != nil {
		m.CodesIssued.WithLabelValues(channel).Inc()
	}
}

// IncrementVerifyOutcome records one verification attempt outcome.
func (m *Metrics) IncrementVerifyOutcome(outcome string) {
	if m != nil {
		m.VerifyOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementUpdates records a self-service update result.
func (m *Metrics) IncrementUpdates(result string) {
	if m != nil {
		m.Updates.WithLabelValues(result).Inc()
	}
}
