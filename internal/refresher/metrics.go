package refresher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments of the refresh engine
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	DueFeeds        prometheus.Gauge
	LeaseHeld       prometheus.Gauge
	TicksSkipped    prometheus.Counter
}

// NewMetrics registers the refresher instruments on the default registry
func NewMetrics() *Metrics {
	return NewMetricsOn(prometheus.DefaultRegisterer)
}

// NewMetricsOn registers the refresher instruments on the given registry
func NewMetricsOn(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feeds_refresh_total",
			Help: "Refresh jobs by outcome",
		}, []string{"outcome"}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feeds_refresh_duration_seconds",
			Help:    "Duration of a single feed refresh, fetch to commit",
			Buckets: prometheus.DefBuckets,
		}),
		DueFeeds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feeds_due_total",
			Help: "Feeds selected as due on the last tick",
		}),
		LeaseHeld: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feeds_refresher_lease_held",
			Help: "Whether this replica currently holds the refresher lease",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "feeds_refresher_ticks_skipped_total",
			Help: "Ticks skipped because the lease is held elsewhere or selection failed",
		}),
	}
}
