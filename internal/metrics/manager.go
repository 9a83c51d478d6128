package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds every collector forge exports. Build one per registry.
type Manager struct {
	// http
	CounterRequests          *prometheus.CounterVec
	HistogramRequestDuration *prometheus.HistogramVec

	// offline cache router
	CounterCacheHits          *prometheus.CounterVec
	CounterCacheMisses        *prometheus.CounterVec
	CounterFallbacks          *prometheus.CounterVec
	CounterNetworkTimeouts    prometheus.Counter
	CounterRefreshFailures    prometheus.Counter
	CounterPassthrough        prometheus.Counter
	GaugeWorkerState          *prometheus.GaugeVec
	GaugeConnectedClients     prometheus.Gauge
	HistogramUpstreamDuration prometheus.Histogram

	// domain
	CounterWorkoutsSaved prometheus.Counter
	CounterDegradedReads *prometheus.CounterVec
}

func NewTestManager() *Manager {
	return NewManager("forge", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("forge", "test", reg), reg
}

// NewRegistry returns a registry carrying build info, Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "The total number of incoming HTTP requests",
		}, []string{"method", "status"}),
		HistogramRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Histogram of response time for requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "status_code"}),

		CounterCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Responses served from a cache bucket",
		}, []string{"bucket"}),
		CounterCacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that found nothing",
		}, []string{"bucket"}),
		CounterFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "offline_fallbacks_total",
			Help:      "Network-first requests answered without the network",
		}, []string{"kind"}),
		CounterNetworkTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "network_timeouts_total",
			Help:      "Network-first requests where the timeout won the race",
		}),
		CounterRefreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "background_refresh_failures_total",
			Help:      "Failed background refreshes of cache-first assets",
		}),
		CounterPassthrough: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passthrough_requests_total",
			Help:      "Requests forwarded without any caching strategy",
		}),
		GaugeWorkerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "worker_state",
			Help:      "1 for the lifecycle state each worker version is in",
		}, []string{"version", "state"}),
		GaugeConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connected_clients",
			Help:      "Pages connected to the worker message channel",
		}),
		HistogramUpstreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upstream_duration_seconds",
			Help:      "Duration of upstream fetches in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		CounterWorkoutsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workouts_saved_total",
			Help:      "Completed workouts written to history",
		}),
		CounterDegradedReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "degraded_reads_total",
			Help:      "Storage reads that fell back to a default",
		}, []string{"key", "outcome"}),
	}
}
