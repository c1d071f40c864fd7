package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the hub's Prometheus collectors. A fresh set is created per
// server so tests can run isolated registries.
type Metrics struct {
	registry *prometheus.Registry

	Logins          *prometheus.CounterVec
	Registrations   prometheus.Counter
	TenantSwitches  prometheus.Counter
	AdminExchanges  *prometheus.CounterVec
	AdminRefreshes  *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	TenantProvision *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_logins_total",
			Help: "Hub login attempts by outcome.",
		}, []string{"outcome"}),
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_registrations_total",
			Help: "Successful hub registrations.",
		}),
		TenantSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_tenant_switches_total",
			Help: "Successful tenant context switches.",
		}),
		AdminExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_admin_exchanges_total",
			Help: "Hub-token to admin-token exchanges by outcome.",
		}, []string{"outcome"}),
		AdminRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_admin_refreshes_total",
			Help: "Admin session refreshes by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_active_sessions",
			Help: "Hub sessions currently active.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_http_requests_total",
			Help: "HTTP requests by method, path pattern, and status.",
		}, []string{"method", "path", "status"}),
		TenantProvision: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_tenant_provisions_total",
			Help: "Tenant database provisioning runs by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
