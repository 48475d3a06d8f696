package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"instantsaver/internal/delivery"
	"instantsaver/internal/logging"
	"instantsaver/internal/source"
)

// Download handles GET /download?url=<u>&profile=<kind>[&heightCeiling=<n>][&title=<t>].
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, err := classifyQuery(q.Get("url"), "")
	if err != nil {
		writeError(w, err)
		return
	}
	h.download(w, r, ref, q.Get("title"))
}

// PlatformDownload handles GET /api/{platform}/download?url=<u>[&title=<t>][&filename=<f>].
// filename wins over title when both are set.
func (h *Handlers) PlatformDownload(w http.ResponseWriter, r *http.Request) {
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
	label := q.Get("title")
	if name := strings.TrimSpace(q.Get("filename")); name != "" {
		label = strings.TrimSuffix(name, extensionOf(name))
	}
	h.download(w, r, ref, label)
}

func (h *Handlers) download(w http.ResponseWriter, r *http.Request, ref source.Reference, title string) {
	q := r.URL.Query()
	kind := q.Get("profile")
	if kind == "" && ref.IsProfile() {
		kind = string(delivery.KindImage)
	}
	profile, err := delivery.ParseProfile(kind, q.Get("heightCeiling"))
	if err != nil {
		writeError(w, err)
		return
	}

	err = h.streamer.Stream(r.Context(), w, delivery.Request{Ref: ref, Profile: profile, Title: title})
	if err == nil {
		return
	}
	log := logging.With(logging.Fields{"component": "handlers", "url": ref.URL, "profile": profile.Kind})
	if delivery.Committed(err) {
		// Status and part of the body are already out.
		log.Debugf("download ended early: %v", err)
		return
	}
	status, _ := classifyError(err)
	log.Warnf("download failed with %d: %v", status, err)
	writeError(w, err)
}

func extensionOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
