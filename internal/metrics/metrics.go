// Package metrics exposes the engine's Prometheus gauges and counters:
// tick latency, reconciliation attempts, and the health-factor levels
// the Risk Monitor computes each tick.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric this engine exports. Its metrics are
// registered at construction against the registerer given to
// NewRegistryOn, which NewRegistry sets to the default Prometheus
// registerer.
type Registry struct {
	TickDuration          prometheus.Histogram
	TickErrors            *prometheus.CounterVec
	ReconciliationAttempts *prometheus.HistogramVec
	ReconciliationFailures prometheus.Counter
	HealthFactor          *prometheus.GaugeVec
	MarginRatio           *prometheus.GaugeVec
	NetDeltaDrift         prometheus.Gauge
	TokenEquity           prometheus.Gauge
	OrdersExecuted        *prometheus.CounterVec
	FeesPaid              *prometheus.CounterVec
}

// NewRegistry constructs every metric and registers it against the
// process's default Prometheus registerer. Call once per process; a
// second call would panic on duplicate registration, matching
// Prometheus's own guardrail against double-counted series.
func NewRegistry() *Registry {
	return NewRegistryOn(prometheus.DefaultRegisterer)
}

// NewRegistryOn constructs every metric and registers it against reg.
// Tests use a scratch prometheus.NewRegistry() here so repeated runs
// don't collide with the process-global default registerer.
func NewRegistryOn(reg prometheus.Registerer) *Registry {
	r := &Registry{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "basisengine_tick_duration_seconds",
			Help:    "Wall-clock duration of one engine tick.",
			Buckets: prometheus.DefBuckets,
		}),
		TickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basisengine_tick_errors_total",
			Help: "Ticks whose market-data fetch failed, labelled tick_fatal; other tick errors are not counted.",
		}, []string{"class"}),
		ReconciliationAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basisengine_reconciliation_attempts",
			Help:    "Number of reconcile attempts before an order group succeeded or escalated.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}, []string{"outcome"}),
		ReconciliationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basisengine_reconciliation_timeouts_total",
			Help: "Order groups that escalated to a reconciliation timeout.",
		}),
		HealthFactor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "basisengine_lending_health_factor",
			Help: "Per-protocol lending health factor from the most recent risk assessment.",
		}, []string{"protocol"}),
		MarginRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "basisengine_cex_margin_ratio",
			Help: "Per-venue CEX margin ratio from the most recent risk assessment.",
		}, []string{"venue"}),
		NetDeltaDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "basisengine_net_delta_drift",
			Help: "Net directional delta drift from the configured target, in reference asset units.",
		}),
		TokenEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "basisengine_token_equity",
			Help: "Current token equity, in reference asset units.",
		}),
		OrdersExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basisengine_orders_executed_total",
			Help: "Orders that reached a filled, reconciled state, by action type.",
		}, []string{"action_type"}),
		FeesPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basisengine_fees_paid_total",
			Help: "Cumulative fees paid, by currency.",
		}, []string{"currency"}),
	}

	reg.MustRegister(
		r.TickDuration,
		r.TickErrors,
		r.ReconciliationAttempts,
		r.ReconciliationFailures,
		r.HealthFactor,
		r.MarginRatio,
		r.NetDeltaDrift,
		r.TokenEquity,
		r.OrdersExecuted,
		r.FeesPaid,
	)
	return r
}

// TickTimer times one tick and records its duration on Stop.
type TickTimer struct {
	r     *Registry
	start time.Time
}

func (r *Registry) StartTick() *TickTimer {
	return &TickTimer{r: r, start: time.Now()}
}

func (t *TickTimer) Stop() {
	t.r.TickDuration.Observe(time.Since(t.start).Seconds())
}

// Handler returns the HTTP handler serving the default Prometheus
// gatherer in the exposition format; metrics registered through
// NewRegistryOn on any other registerer are not served by it.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
