package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"instantsaver/internal/delivery"
	"instantsaver/internal/resolver"
	"instantsaver/internal/source"
	"instantsaver/internal/startup"
)

// Resolver turns a reference into a preview result.
type Resolver interface {
	Resolve(ctx context.Context, ref source.Reference, opts resolver.Options) (resolver.Result, error)
}

// Streamer delivers a download into a response.
type Streamer interface {
	Stream(ctx context.Context, w http.ResponseWriter, req delivery.Request) error
}

// VersionReporter reports the extractor version for health output.
type VersionReporter interface {
	Version(ctx context.Context) (string, error)
}

// versionTTL bounds how often health checks spawn the extractor.
const versionTTL = 5 * time.Minute

type Handlers struct {
	resolver  Resolver
	streamer  Streamer
	extractor VersionReporter
	config    *startup.Config
	started   time.Time

	versionMu      sync.Mutex
	version        string
	versionErr     error
	versionChecked time.Time
	now            func() time.Time
}

func New(res Resolver, streamer Streamer, ext VersionReporter, config *startup.Config) *Handlers {
	return &Handlers{
		resolver:  res,
		streamer:  streamer,
		extractor: ext,
		config:    config,
		started:   time.Now(),
		now:       time.Now,
	}
}

// extractorVersion returns a cached `yt-dlp --version`.
func (h *Handlers) extractorVersion(ctx context.Context) (string, error) {
	h.versionMu.Lock()
	defer h.versionMu.Unlock()

	if !h.versionChecked.IsZero() && h.now().Sub(h.versionChecked) < versionTTL {
		return h.version, h.versionErr
	}
	h.version, h.versionErr = h.extractor.Version(ctx)
	h.versionChecked = h.now()
	return h.version, h.versionErr
}
