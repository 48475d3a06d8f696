package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instantsaver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instantsaver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "instantsaver_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "instantsaver_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// Resolver metrics
var (
	ResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instantsaver_resolve_total",
			Help: "Resolution attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "hit", "next", "terminal"
	)

	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instantsaver_resolve_duration_seconds",
			Help:    "Time spent in each resolution strategy",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"strategy"},
	)

	ResolveCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "instantsaver_resolve_coalesced_total",
			Help: "Resolutions served by joining an identical in-flight request",
		},
	)

	ProfileLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instantsaver_profile_lookups_total",
			Help: "Profile metadata endpoint lookups by status",
		},
		[]string{"status"},
	)
)

// Extractor metrics
var (
	ExtractorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instantsaver_extractor_runs_total",
			Help: "Extractor subprocess runs by operation and status",
		},
		[]string{"operation", "status"},
	)

	ExtractorRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instantsaver_extractor_run_duration_seconds",
			Help:    "Extractor subprocess wall-clock duration",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"operation"},
	)

	ExtractorRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "instantsaver_extractor_runs_in_progress",
			Help: "Number of extractor subprocesses currently running",
		},
	)
)

// Download metrics
var (
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instantsaver_downloads_total",
			Help: "Downloads by delivery kind and final state",
		},
		[]string{"kind", "outcome"}, // outcome: "completed", "aborted", "rejected"
	)

	DownloadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instantsaver_download_bytes_total",
			Help: "Bytes streamed to clients",
		},
		[]string{"kind"},
	)

	DownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instantsaver_download_duration_seconds",
			Help:    "Download stream duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	DownloadsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "instantsaver_downloads_in_progress",
			Help: "Number of downloads currently streaming",
		},
	)
)

// Process metrics, refreshed by the Collector
var (
	TranscoderProcessesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "instantsaver_transcoder_processes_live",
			Help: "Transcoder subprocesses currently tracked for shutdown cleanup",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "instantsaver_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapInUseBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "instantsaver_heap_inuse_bytes",
			Help: "Go heap bytes in use",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "instantsaver_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "extractor_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion, extractorVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion, extractorVersion).Set(1)
}
