package metrics

// Strategy names used as label values. They match the names the resolver
// registers its strategies under.
var strategyNames = []string{"profile-picture", "direct-url", "manifest"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, s := range strategyNames {
		for _, outcome := range []string{"hit", "next", "terminal"} {
			ResolveTotal.WithLabelValues(s, outcome)
		}
		ResolveDuration.WithLabelValues(s)
	}

	for _, op := range []string{"manifest", "direct", "version"} {
		for _, status := range []string{"success", "timeout", "too_large", "failed", "unavailable", "canceled"} {
			ExtractorRunsTotal.WithLabelValues(op, status)
		}
		ExtractorRunDuration.WithLabelValues(op)
	}

	for _, status := range []string{"success", "error", "not_found"} {
		ProfileLookupsTotal.WithLabelValues(status)
	}

	for _, kind := range []string{"video", "audio", "image"} {
		for _, outcome := range []string{"completed", "aborted", "rejected"} {
			DownloadsTotal.WithLabelValues(kind, outcome)
		}
		DownloadBytesTotal.WithLabelValues(kind)
		DownloadDuration.WithLabelValues(kind)
	}
}
