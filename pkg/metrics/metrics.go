package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global collectors, registered through promauto on the default registry.

var (
	// OccupancyLimit is the current capacity of each edge builder.
	OccupancyLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qmcgraph_edge_occupancy_limit",
			Help: "Current occupancy limit (edge buffer capacity) per edge type",
		},
		[]string{"edge_type"},
	)

	// CapacityGrowthTotal counts how often a builder had to grow and re-run.
	// After warm-up this should be flat.
	CapacityGrowthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qmcgraph_edge_capacity_growth_total",
			Help: "Number of builds that overflowed the occupancy limit and were recomputed",
		},
		[]string{"edge_type"},
	)

	// MaxOccupancy records the largest true edge count seen across the batch
	// of each build.
	MaxOccupancy = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qmcgraph_edge_max_occupancy",
			Help:    "Maximum number of kept edges over the batch of a single build",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"edge_type"},
	)

	// BuildDuration measures one Build call, including a possible re-run.
	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qmcgraph_edge_build_duration_seconds",
			Help:    "Duration of edge builds in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		},
		[]string{"edge_type"},
	)

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qmcgraph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qmcgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "path"},
	)
)
