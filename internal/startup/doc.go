// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from the environment (and an optional .env file)
// into [Config] via [LoadConfig]. The most relevant variables are:
//
//   - PORT: HTTP server port (default: 3001)
//   - METRICS_PORT / METRICS_ENABLED: Prometheus server (default: 9090 / true)
//   - YTDLP_PATH / FFMPEG_PATH: external binaries (default: yt-dlp / ffmpeg)
//   - INSTAGRAM_COOKIES: Netscape cookie text, written once to COOKIES_DIR
//   - MANIFEST_TIMEOUT / DIRECT_URL_TIMEOUT: extractor deadlines (default: 45s / 20s)
//   - MANIFEST_MAX_BYTES: extractor output cap (default: 16 MiB)
//   - STREAM_MAX_DURATION: safety net for a single download (default: 30m)
//   - ALLOW_SILENT_PREVIEW: offer video-only streams as previews (default: false)
//   - EXTRACTOR_WORKERS: concurrent extractor processes (default: derived from CPUs)
//   - RATE_LIMIT_RPS / RATE_LIMIT_BURST: request limiter (default: 10 / 20)
//   - LOG_LEVEL / LOG_FORMAT / LOG_HEALTH_CHECKS: logging
//
// # External tools
//
// [CheckTool] looks up yt-dlp and ffmpeg and records their version for the
// health endpoint. A missing yt-dlp is not fatal; the server starts and
// reports itself as not ready.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
