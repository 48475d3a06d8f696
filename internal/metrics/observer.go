package metrics

import "instantsaver/internal/extractor"

// extractorObserver implements extractor.Observer using the Prometheus
// metrics declared in this package.
type extractorObserver struct{}

// NewExtractorObserver creates an observer that records extractor runs
// into the counters and histograms declared in metrics.go.
func NewExtractorObserver() extractor.Observer {
	return &extractorObserver{}
}

func (o *extractorObserver) RunStarted(string) {
	ExtractorRunsInProgress.Inc()
}

func (o *extractorObserver) RunFinished(operation, status string, durationSeconds float64) {
	ExtractorRunsInProgress.Dec()
	ExtractorRunsTotal.WithLabelValues(operation, status).Inc()
	ExtractorRunDuration.WithLabelValues(operation).Observe(durationSeconds)
}
