// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DiscoveryResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_results_total",
			Help: "Total number of discovery results by resolution path",
		},
		[]string{"path"},
	)

	DiscoveryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_fallbacks_total",
			Help: "Total number of fallback substitutions by stage and reason",
		},
		[]string{"stage", "reason"},
	)

	ModelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_request_duration_seconds",
			Help:    "Duration of generative model calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
)

// Resolution paths reported on DiscoveryResults
const (
	PathDirectOffer    = "direct_offer"
	PathSearchResults  = "search_results"
	PathImageResults   = "image_results"
	PathConversational = "conversational"
	PathRecommendation = "recommendation"
	PathFallback       = "fallback"
)
