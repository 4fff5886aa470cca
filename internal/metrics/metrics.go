// Package metrics exposes poller state as Prometheus metrics
package metrics

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
)

// Collector holds the dashboard metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	reading      *prometheus.GaugeVec
	connected    prometheus.Gauge
	cycles       *prometheus.CounterVec
	duration     prometheus.Histogram
	lastUpdated  prometheus.Gauge
	errorsInARow prometheus.Gauge
}

// NewCollector registers all metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "enviromoon",
			Name:      "reading",
			Help:      "Latest sensor reading per channel.",
		}, []string{"channel"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviromoon",
			Name:      "device_connected",
			Help:      "1 when the backend reports the device as connected.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviromoon",
			Name:      "poll_cycles_total",
			Help:      "Completed fetch cycles by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enviromoon",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of fetch cycles.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		lastUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviromoon",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle.",
		}),
		errorsInARow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviromoon",
			Name:      "consecutive_errors",
			Help:      "Failed cycles since the last success.",
		}),
	}

	c.registry.MustRegister(c.reading, c.connected, c.cycles, c.duration, c.lastUpdated, c.errorsInARow)
	return c
}

// Observe records a completed snapshot; it is a poller.Listener
func (c *Collector) Observe(snap poller.Snapshot) {
	c.cycles.WithLabelValues(string(snap.Phase)).Inc()
	c.duration.Observe(snap.Duration.Seconds())
	c.errorsInARow.Set(float64(snap.ConsecutiveErrors))

	if snap.Connectivity == models.ConnectivityConnected {
		c.connected.Set(1)
	} else {
		c.connected.Set(0)
	}
	if !snap.LastUpdated.IsZero() {
		c.lastUpdated.Set(float64(snap.LastUpdated.Unix()))
	}

	if snap.Latest == nil || snap.Latest.IsPlaceholder() {
		return
	}
	for _, ch := range models.Channels {
		v := snap.Latest.Value(ch)
		if math.IsNaN(v) {
			c.reading.DeleteLabelValues(string(ch))
			continue
		}
		c.reading.WithLabelValues(string(ch)).Set(v)
	}
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
