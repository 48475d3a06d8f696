package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"instantsaver/internal/delivery"
	"instantsaver/internal/logging"
	"instantsaver/internal/resolver"
	"instantsaver/internal/source"
)

// Resolve handles GET /resolve?url=<u>[&heightCeiling=<n>].
func (h *Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, err := classifyQuery(q.Get("url"), "")
	if err != nil {
		writeError(w, err)
		return
	}
	h.resolve(w, r, ref, q.Get("heightCeiling"))
}

// PlatformResolve handles GET /api/{platform}?url=<u>. The URL must belong
// to the platform in the path.
func (h *Handlers) PlatformResolve(w http.ResponseWriter, r *http.Request) {
	platform, ok := source.ParsePlatform(mux.Vars(r)["platform"])
	if !ok {
		writeJSONError(w, errorBody{Error: "unknown platform"}, http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	ref, err := classifyQuery(q.Get("url"), platform)
	if err != nil {
		writeError(w, err)
		return
	}
	h.resolve(w, r, ref, q.Get("heightCeiling"))
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request, ref source.Reference, ceilingParam string) {
	ceiling, err := parseCeiling(ceilingParam)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.resolver.Resolve(r.Context(), ref, resolver.Options{HeightCeiling: ceiling})
	if err != nil {
		status, _ := classifyError(err)
		logging.With(logging.Fields{"component": "handlers", "url": ref.URL, "status": status}).
			Warnf("resolve failed: %v", err)
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, result)
}

// classifyQuery classifies raw for any platform, or only for platform when
// it is set.
func classifyQuery(raw string, platform source.Platform) (source.Reference, error) {
	if strings.TrimSpace(raw) == "" {
		return source.Reference{}, &source.Error{Err: source.ErrInvalidURL, Platform: platform, Input: raw}
	}
	if platform != "" {
		return source.ClassifyFor(raw, platform)
	}
	return source.Classify(raw)
}

func parseCeiling(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > delivery.MaxHeightCeiling {
		return 0, fmt.Errorf("%w: heightCeiling must be between 0 and %d", delivery.ErrInvalidProfile, delivery.MaxHeightCeiling)
	}
	return n, nil
}
