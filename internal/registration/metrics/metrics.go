package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration module.
type Metrics struct {
	// Registrations created, by organization
	Created *prometheus.CounterVec

	// Status transitions applied by staff, by target status
	StatusChanged *prometheus.CounterVec

	// Exports served, by format
	Exported *prometheus.CounterVec
}

// New creates a new Metrics instance with all registration module metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_registrations_created_total",
			Help: "Total registrations created by organization",
		}, []string{"org"}),

		StatusChanged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_registration_status_changes_total",
			Help: "Total staff status changes by resulting status",
		}, []string{"status"}),

		Exported: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_registration_exports_total",
			Help: "Total registration exports by format",
		}, []string{"format"}),
	}
}

// IncrementCreated records a new registration for an organization.
func (m *Metrics) IncrementCreated(org string) {
	if m != nil {
		m.Created.WithLabelValues(org).Inc()
	}
}

// IncrementStatusChanged records a staff-applied status change.
func (m *Metrics) IncrementStatusChanged(status string) {
	if m != nil {
		m.StatusChanged.WithLabelValues(status).Inc()
	}
}

// IncrementExported records an export request.
func (m *Metrics) IncrementExported(format string) {
	if m != nil {
		m.Exported.WithLabelValues(format).Inc()
	}
}
