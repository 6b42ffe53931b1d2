package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	UpdatesTotal   *prometheus.CounterVec
	UpdateErrors   *prometheus.CounterVec
	WizardSessions prometheus.Gauge
	WizardOutcomes *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound chat updates by surface and kind.",
		}, []string{"surface", "kind"}),
		UpdateErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_errors_total",
			Help:      "Updates whose handling returned an error, by surface.",
		}, []string{"surface"}),
		WizardSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wizard_sessions",
			Help:      "Number of in-flight task creation wizard sessions.",
		}),
		WizardOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_outcomes_total",
			Help:      "Finished wizard sessions by outcome.",
		}, []string{"outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Entity store failures by operation.",
		}, []string{"op"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
