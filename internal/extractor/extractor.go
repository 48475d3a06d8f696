package extractor

import (
	"context"
	"errors"
	"fmt"

	"instantsaver/internal/source"
)

// Extractor fetches media metadata for a classified reference.
type Extractor interface {
	// FetchManifest returns the full manifest for ref.
	FetchManifest(ctx context.Context, ref source.Reference) (*Manifest, error)
	// DirectURL asks for a single progressive stream URL without a full
	// manifest. heightCeiling of 0 means no ceiling.
	DirectURL(ctx context.Context, ref source.Reference, heightCeiling int) (Direct, error)
	// Version reports the tool version for health output.
	Version(ctx context.Context) (string, error)
}

// Direct is the result of a quick direct-URL resolution.
type Direct struct {
	URL      string
	Title    string
	Uploader string
}

// Observer receives run lifecycle events, typically for metrics.
type Observer interface {
	RunStarted(operation string)
	RunFinished(operation, status string, durationSeconds float64)
}

type nopObserver struct{}

func (nopObserver) RunStarted(string)                   {}
func (nopObserver) RunFinished(string, string, float64) {}

var (
	// ErrFetchTimeout means the subprocess exceeded its wall-clock budget.
	ErrFetchTimeout = errors.New("extractor timed out")
	// ErrOutputTooLarge means stdout exceeded the configured cap.
	ErrOutputTooLarge = errors.New("extractor output too large")
	// ErrManifestParse means the output was not a usable JSON document.
	ErrManifestParse = errors.New("malformed manifest")
	// ErrUnavailable means the extractor binary could not be started.
	ErrUnavailable = errors.New("extractor unavailable")
	// ErrEmptyOutput means the tool exited cleanly but printed nothing usable.
	ErrEmptyOutput = errors.New("extractor returned no result")
)

// ExtractionError reports a failed run: a non-zero exit or diagnostics on
// stderr. Stderr is for logs only and never shown to clients.
type ExtractionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExtractionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("extraction failed (exit %d)", e.ExitCode)
	}
	return "extraction failed (diagnostics on stderr)"
}

// IsTransient reports whether a retry of the same fetch could plausibly
// succeed.
func IsTransient(err error) bool {
	var xerr *ExtractionError
	switch {
	case errors.Is(err, ErrFetchTimeout), errors.Is(err, ErrEmptyOutput):
		return true
	case errors.As(err, &xerr):
		return true
	}
	return false
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, ErrOutputTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "failed"
	}
}
