// Package metrics exposes bridge activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the bridge metrics on its own registry. It satisfies the
// observer interfaces of the correlation, refresh, permission and events packages.
type Collector struct {
	registry *prometheus.Registry

	tokensAllocated prometheus.Counter
	tokensResolved  prometheus.Counter
	tokensCanceled  prometheus.Counter
	tokensTimedOut  prometheus.Counter
	tokensPending   prometheus.Gauge

	refreshStarted   prometheus.Counter
	refreshCoalesced prometheus.Counter

	permissionShortCircuits prometheus.Counter
	eventsDropped           prometheus.Counter

	launches *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tokensAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_tokens_allocated_total",
			Help: "Correlation tokens handed out",
		}),
		tokensResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_tokens_resolved_total",
			Help: "Correlation tokens resolved by a result",
		}),
		tokensCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_tokens_canceled_total",
			Help: "Correlation tokens dropped without a result",
		}),
		tokensTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_tokens_timed_out_total",
			Help: "Correlation tokens resolved by timeout",
		}),
		tokensPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rootbridge_tokens_pending",
			Help: "Correlation tokens currently awaiting a result",
		}),
		refreshStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_refresh_started_total",
			Help: "Refresh jobs started",
		}),
		refreshCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_refresh_coalesced_total",
			Help: "Change signals absorbed by a running refresh",
		}),
		permissionShortCircuits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_permission_short_circuits_total",
			Help: "Permission requests granted without prompting",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootbridge_events_dropped_total",
			Help: "View events discarded before delivery",
		}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rootbridge_launches_total",
			Help: "Launch requests sent to the helper by kind and result",
		}, []string{"kind", "status"}),
	}

	c.registry.MustRegister(
		c.tokensAllocated,
		c.tokensResolved,
		c.tokensCanceled,
		c.tokensTimedOut,
		c.tokensPending,
		c.refreshStarted,
		c.refreshCoalesced,
		c.permissionShortCircuits,
		c.eventsDropped,
		c.launches,
	)
	return c
}

func (c *Collector) TokenAllocated()     { c.tokensAllocated.Inc() }
func (c *Collector) TokenResolved()      { c.tokensResolved.Inc() }
func (c *Collector) TokenCanceled(n int) { c.tokensCanceled.Add(float64(n)) }
func (c *Collector) TokenTimedOut()      { c.tokensTimedOut.Inc() }
func (c *Collector) PendingTokens(n int) { c.tokensPending.Set(float64(n)) }

func (c *Collector) RefreshStarted()   { c.refreshStarted.Inc() }
func (c *Collector) RefreshCoalesced() { c.refreshCoalesced.Inc() }

func (c *Collector) PermissionShortCircuited() { c.permissionShortCircuits.Inc() }

func (c *Collector) EventDropped() { c.eventsDropped.Inc() }

// LaunchFinished counts one launch of kind ending in status.
func (c *Collector) LaunchFinished(kind, status string) {
	c.launches.WithLabelValues(kind, status).Inc()
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
