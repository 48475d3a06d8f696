package handlers

import (
	"net/http"

	"instantsaver/internal/startup"
)

// VersionResponse is the build info plus the extractor version.
type VersionResponse struct {
	startup.BuildInfo
	ExtractorVersion string `json:"extractorVersion,omitempty"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	response := VersionResponse{BuildInfo: startup.GetBuildInfo()}
	if v, err := h.extractorVersion(r.Context()); err == nil {
		response.ExtractorVersion = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}
