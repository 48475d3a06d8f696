package handlers

import (
	"net/http"
	"runtime"
	"time"

	"instantsaver/internal/startup"
)

const (
	statusHealthy     = "healthy"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
)

// ToolHealth reports one external binary.
type ToolHealth struct {
	Present bool   `json:"present"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Extractor ToolHealth `json:"extractor"`
	FFmpeg    ToolHealth `json:"ffmpeg"`
	Cookies   bool       `json:"cookies"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// ready means resolution can run at all.
func (h *Handlers) ready() bool {
	return h.config.Extractor.Present
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Ready:        h.ready(),
		Version:      startup.Version,
		Uptime:       startup.FormatUptime(time.Since(h.started)),
		Extractor:    toolHealth(h.config.Extractor),
		FFmpeg:       toolHealth(h.config.FFmpeg),
		Cookies:      h.config.CookiesPath != "",
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	switch {
	case !response.Ready:
		response.Status = statusUnavailable
	default:
		response.Status = statusHealthy
		version, err := h.extractorVersion(r.Context())
		if err != nil {
			response.Status = statusDegraded
			response.Extractor.Error = "version check failed"
		} else {
			response.Extractor.Version = version
		}
		// Split streams cannot be merged without ffmpeg.
		if !response.FFmpeg.Present {
			response.Status = statusDegraded
		}
	}

	status := http.StatusOK
	if !response.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, response)
}

func toolHealth(s startup.ToolStatus) ToolHealth {
	return ToolHealth{Present: s.Present, Path: s.Path, Version: s.Version, Error: s.Error}
}

// LivenessCheck is a simple liveness check (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
		})
	} else {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
	}
}
