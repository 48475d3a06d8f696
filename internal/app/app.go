// Package app assembles the resolution and download pipeline from a loaded
// configuration. The server and saverctl share it so both run the same
// extractor pool, fallback chain and streaming proxy.
package app

import (
	"github.com/spf13/afero"

	"instantsaver/internal/cookies"
	"instantsaver/internal/delivery"
	"instantsaver/internal/extractor"
	"instantsaver/internal/metrics"
	"instantsaver/internal/profilepic"
	"instantsaver/internal/resolver"
	"instantsaver/internal/selector"
	"instantsaver/internal/startup"
	"instantsaver/internal/streaming"
	"instantsaver/internal/transcoder"
	"instantsaver/internal/workers"
)

const (
	// ManifestRetries is the number of extra manifest attempts after an
	// extraction failure.
	ManifestRetries = 2
	// MaxExtractorSlots caps concurrent yt-dlp manifest runs.
	MaxExtractorSlots = 8
	// streamChunkSize matches the proxy read buffer.
	streamChunkSize = 64 * 1024
)

// Components holds the wired pipeline.
type Components struct {
	Slots      int
	Extractor  *extractor.YTDLP
	Resolver   *resolver.Resolver
	Transcoder *transcoder.YTDLP
	Proxy      *delivery.Proxy
}

// Build wires the pipeline from config. It starts nothing; subprocesses
// are spawned per request.
func Build(config *startup.Config) *Components {
	slots := workers.ForIO(MaxExtractorSlots, config.ExtractorWorkers)

	var jar *cookies.Jar
	if config.CookiesPath != "" {
		jar = cookies.NewJar(afero.NewOsFs(), config.CookiesPath)
	}

	ext := extractor.NewYTDLP(extractor.Options{
		Binary:          config.YtDlpPath,
		Cookies:         jar,
		ManifestTimeout: config.ManifestTimeout,
		DirectTimeout:   config.DirectURLTimeout,
		MaxOutput:       config.ManifestMaxBytes,
		Slots:           slots,
		Retries:         ManifestRetries,
		Observer:        metrics.NewExtractorObserver(),
	})

	res := resolver.New(resolver.Config{
		Extractor: ext,
		Profiles:  profilepic.New(profilepic.Options{Timeout: config.ProfileTimeout}),
		Selector:  selector.New(selector.Policy{AllowSilentPreview: config.AllowSilentPreview}),
	})

	trans := transcoder.New(transcoder.Options{
		Binary:     config.YtDlpPath,
		FFmpegPath: config.FFmpegPath,
		Cookies:    jar,
	})

	proxy := delivery.NewProxy(delivery.Config{
		Transcoder:       trans,
		Images:           res,
		Stream:           StreamConfig(config),
		FirstByteTimeout: config.StreamIdleTimeout,
	})

	return &Components{
		Slots:      slots,
		Extractor:  ext,
		Resolver:   res,
		Transcoder: trans,
		Proxy:      proxy,
	}
}

// StreamConfig maps the STREAM_* settings onto the timeout writer.
func StreamConfig(config *startup.Config) streaming.TimeoutWriterConfig {
	return streaming.TimeoutWriterConfig{
		WriteTimeout: config.StreamWriteTimeout,
		IdleTimeout:  config.StreamIdleTimeout,
		MaxDuration:  config.StreamMaxDuration,
		ChunkSize:    streamChunkSize,
	}
}
