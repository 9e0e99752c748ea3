package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all runtime-level metrics (not component-specific)
type Metrics struct {
	// Cache request metrics
	CacheRequestsTotal       *prometheus.CounterVec
	CacheRequestDuration     *prometheus.HistogramVec
	CacheRequestsOutstanding prometheus.Gauge
	LiveMessagesDelivered    *prometheus.CounterVec

	// Transport metrics
	TransportConnected  prometheus.Gauge
	TransportReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all runtime metrics
func NewMetrics() *Metrics {
	return &Metrics{
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cachestream",
				Subsystem: "cache",
				Name:      "requests_total",
				Help:      "Total number of cache requests by live-data policy and terminal outcome",
			},
			[]string{"policy", "outcome"},
		),

		CacheRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cachestream",
				Subsystem: "cache",
				Name:      "request_duration_seconds",
				Help:      "Time from cache request issue to terminal state",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"policy"},
		),

		CacheRequestsOutstanding: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cachestream",
				Subsystem: "cache",
				Name:      "requests_outstanding",
				Help:      "Number of cache requests currently in flight",
			},
		),

		LiveMessagesDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cachestream",
				Subsystem: "cache",
				Name:      "live_messages_total",
				Help:      "Live messages handled during cache requests by disposition",
			},
			[]string{"disposition"},
		),

		TransportConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cachestream",
				Subsystem: "transport",
				Name:      "connected",
				Help:      "Transport connection status (1=connected, 0=disconnected)",
			},
		),

		TransportReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cachestream",
				Subsystem: "transport",
				Name:      "reconnects_total",
				Help:      "Total number of transport reconnects",
			},
		),
	}
}
