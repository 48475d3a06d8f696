// Package metrics provides Prometheus instrumentation for InstantSaver.
//
// All metrics are prefixed with "instantsaver_" and served on the separate
// metrics port.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - HTTPRateLimitedTotal: Counter of requests rejected with 429
//
// ## Resolver Metrics
//
//   - ResolveTotal: Counter by strategy and outcome (hit, next, terminal)
//   - ResolveDuration: Histogram of time spent per strategy
//   - ResolveCoalescedTotal: Counter of callers that joined an in-flight resolution
//   - ProfileLookupsTotal: Counter of profile endpoint lookups by status
//
// ## Extractor Metrics
//
// Recorded through [NewExtractorObserver]:
//   - ExtractorRunsTotal: Counter by operation (manifest, direct, version) and status
//   - ExtractorRunDuration: Histogram of subprocess wall-clock time
//   - ExtractorRunsInProgress: Gauge of running subprocesses
//
// ## Download Metrics
//
//   - DownloadsTotal: Counter by kind (video, audio, image) and outcome
//   - DownloadBytesTotal: Counter of bytes streamed
//   - DownloadDuration: Histogram of stream duration
//   - DownloadsInProgress: Gauge of active streams
//
// ## Process Metrics
//
// Refreshed periodically by [Collector]:
//   - TranscoderProcessesLive, GoroutinesCount, HeapInUseBytes
package metrics
