package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"instantsaver/internal/app"
	"instantsaver/internal/handlers"
	"instantsaver/internal/logging"
	"instantsaver/internal/metrics"
	"instantsaver/internal/middleware"
	"instantsaver/internal/startup"
	"instantsaver/internal/transcoder"

	"github.com/gorilla/mux"
)

// statsInterval is how often live process counts are sampled.
const statsInterval = 15 * time.Second

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize metrics
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
	}

	// Initialize resolution pipeline and streaming proxy
	pipeline := app.Build(config)
	startup.LogPipelineInit(pipeline.Slots, config.AllowSilentPreview, config.CookiesPath != "")

	if config.MetricsEnabled {
		extractorVersion := "unavailable"
		if config.Extractor.Present {
			extractorVersion = config.Extractor.Version
		}
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion, extractorVersion)
	}
	trans := pipeline.Transcoder

	// Initialize handlers
	h := handlers.New(pipeline.Resolver, pipeline.Proxy, pipeline.Extractor, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	handler := buildHandler(router, config)

	// Create server. WriteTimeout stays zero; downloads enforce their own
	// per-write and idle deadlines.
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	// Start metrics server and collector
	var metricsSrv *http.Server
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(trans, statsInterval)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, collector, trans)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Resolution and download
	r.HandleFunc("/resolve", h.Resolve).Methods("GET")
	r.HandleFunc("/download", h.Download).Methods("GET")

	// Platform-scoped aliases
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/{platform}", h.PlatformResolve).Methods("GET")
	api.HandleFunc("/{platform}/download", h.PlatformDownload).Methods("GET")

	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	return r
}

// buildHandler wraps the router in the outer middleware chain. Recover is
// outermost so a panic anywhere below still produces a response.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(router)

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RPS:       config.RateLimitRPS,
		Burst:     config.RateLimitBurst,
		SkipPaths: []string{"/health", "/healthz", "/livez", "/readyz"},
	})
	handler = limiter.Middleware(handler)

	handler = middleware.CORS(config.CORSOrigins)(handler)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	handler = middleware.RequestID(handler)
	return middleware.Recover(handler)
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, trans *transcoder.YTDLP) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Cleaning up transcoder")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
