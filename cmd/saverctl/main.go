package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"instantsaver/internal/app"
	"instantsaver/internal/delivery"
	"instantsaver/internal/resolver"
	"instantsaver/internal/source"
	"instantsaver/internal/startup"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// resolverAPI is the part of the resolver the commands call.
type resolverAPI interface {
	Resolve(ctx context.Context, ref source.Reference, opts resolver.Options) (resolver.Result, error)
}

type streamer interface {
	Stream(ctx context.Context, w http.ResponseWriter, req delivery.Request) error
}

type versionReporter interface {
	Version(ctx context.Context) (string, error)
}

// pipeline is what a command run needs. close kills any downloads still
// running when the command returns.
type pipeline struct {
	resolver  resolverAPI
	streamer  streamer
	extractor versionReporter
	close     func()
}

// env carries the pipeline constructor and the filesystem downloads are
// written to.
type env struct {
	load func() (*pipeline, error)
	fs   afero.Fs
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(env{load: loadPipeline, fs: afero.NewOsFs()})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:           "saverctl",
		Short:         "Resolve and download Instagram and YouTube media from the command line",
		Long:          "saverctl runs the same resolution chain and streaming proxy as the InstantSaver server, without an HTTP hop.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newResolveCmd(e), newDownloadCmd(e), newVersionCmd(e))
	return root
}

// loadPipeline reads configuration the way the server does, quietly, and
// wires the real pipeline.
func loadPipeline() (*pipeline, error) {
	_ = godotenv.Load()

	config, err := startup.ReadConfig()
	if err != nil {
		return nil, err
	}

	config.Extractor = startup.CheckTool(config.YtDlpPath, "--version")
	if !config.Extractor.Present {
		return nil, fmt.Errorf("yt-dlp not available at %s: %s", config.YtDlpPath, config.Extractor.Error)
	}
	config.FFmpeg = startup.CheckTool(config.FFmpegPath, "-version")

	if config.InstagramCookies != "" {
		path, err := startup.WriteCookies(afero.NewOsFs(), config.CookiesDir, config.InstagramCookies)
		if err != nil {
			return nil, fmt.Errorf("failed to write cookie file: %w", err)
		}
		config.CookiesPath = path
	}

	c := app.Build(config)
	return &pipeline{
		resolver:  c.Resolver,
		streamer:  c.Proxy,
		extractor: c.Extractor,
		close:     c.Transcoder.Cleanup,
	}, nil
}

// withPipeline loads the pipeline, runs fn and tears it down.
func withPipeline(e env, fn func(p *pipeline) error) error {
	p, err := e.load()
	if err != nil {
		return err
	}
	if p.close != nil {
		defer p.close()
	}
	return fn(p)
}

// classifyArg classifies a command argument, scoped to platform when set.
func classifyArg(raw, platform string) (source.Reference, error) {
	if platform == "" {
		return source.Classify(raw)
	}
	p, ok := source.ParsePlatform(platform)
	if !ok {
		return source.Reference{}, fmt.Errorf("unknown platform %q", platform)
	}
	return source.ClassifyFor(raw, p)
}
