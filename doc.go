// Package main provides the entry point for the InstantSaver media resolver.
//
// InstantSaver accepts a public Instagram or YouTube link, works out what
// media it points at, and either describes that media for preview or
// streams it back to the client as a download. Nothing is stored: every
// request runs yt-dlp afresh and bytes flow from the child process
// straight into the HTTP response.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads environment variables (.env supported),
//     checks the yt-dlp and ffmpeg binaries and writes the cookie file
//  2. Pipeline Initialization:
//     - Extractor: Bounded pool of yt-dlp manifest and direct-URL runs
//     - Profile Pictures: Browser-fingerprinted client for profile lookups
//     - Selector: Picks the preview stream from a manifest
//     - Resolver: Ordered fallback chain over the above
//     - Proxy: Spawns merging downloads and streams their output
//  3. HTTP Server Setup: Registers routes, wraps them in middleware
//  4. Graceful Shutdown: Handles SIGINT/SIGTERM, kills live downloads
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 3001):
//     - GET /resolve?url=...[&heightCeiling=N]
//     - GET /download?url=...[&profile=video|audio|image][&heightCeiling=N][&title=...]
//     - GET /api/{platform} and /api/{platform}/download aliases
//     - Health checks: /health, /healthz, /livez, /readyz and /version
//
//  2. Metrics Server (default port 9090):
//     - Prometheus metrics at /metrics
//
// # Middleware Stack
//
// Requests pass through, outermost first:
//
//   - Panic recovery
//   - Request ID assignment (X-Request-ID)
//   - W3C extended access logging
//   - CORS
//   - Per-client rate limiting
//   - Gzip compression of JSON responses
//   - Per-route Prometheus metrics
//
// # Configuration
//
// See [startup.Config] for the full list of environment variables. The
// most common ones are PORT, YTDLP_PATH, FFMPEG_PATH, INSTAGRAM_COOKIES
// and LOG_LEVEL.
//
// [startup.Config]: instantsaver/internal/startup.Config
package main
