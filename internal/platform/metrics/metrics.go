package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes used as the "outcome" label.
const (
	OutcomeRegistered = "registered"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	UsersProvisioned       prometheus.Counter
	ProvisionConflicts     prometheus.Counter
	Registrations          *prometheus.CounterVec
	AuthenticationFailures *prometheus.CounterVec
	AuthenticationDuration prometheus.Histogram
}

// New creates and registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersProvisioned: factory.NewCounter(prometheus.CounterOpts{
			Name: "market_users_provisioned_total",
			Help: "Accounts auto-provisioned on first contact of a remote user",
		}),
		ProvisionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "market_user_provision_conflicts_total",
			Help: "First-contact provisioning attempts that lost a race and re-read the winner",
		}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_registrations_total",
			Help: "Market user registrations by outcome",
		}, []string{"outcome"}),
		AuthenticationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_authentication_failures_total",
			Help: "Requests rejected by the authentication stages",
		}, []string{"reason"}),
		AuthenticationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "market_authentication_duration_seconds",
			Help:    "Time spent establishing the authenticated principal (excludes downstream handling)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementUsersProvisioned() {
	if m == nil {
		return
	}
	m.UsersProvisioned.Inc()
}

func (m *Metrics) IncrementProvisionConflicts() {
	if m == nil {
		return
	}
	m.ProvisionConflicts.Inc()
}

func (m *Metrics) IncrementRegistrations(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementAuthenticationFailures(reason string) {
	if m == nil {
		return
	}
	m.AuthenticationFailures.WithLabelValues(reason).Inc()
}

// ObserveAuthentication records the time since start.
func (m *Metrics) ObserveAuthentication(start time.Time) {
	if m == nil {
		return
	}
	m.AuthenticationDuration.Observe(time.Since(start).Seconds())
}
