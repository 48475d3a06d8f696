package handlers

import (
	"context"
	"errors"
	"net/http"

	"instantsaver/internal/delivery"
	"instantsaver/internal/extractor"
	"instantsaver/internal/profilepic"
	"instantsaver/internal/resolver"
	"instantsaver/internal/source"
	"instantsaver/internal/transcoder"
)

// statusClientClosed is logged for requests whose client went away; nothing
// is written back.
const statusClientClosed = 499

// classifyError maps a failure to a status code and a client-safe body.
// Diagnostic text from subprocesses never reaches the body.
func classifyError(err error) (int, errorBody) {
	var (
		srcErr *source.Error
		resErr *resolver.ResolutionError
		xErr   *extractor.ExtractionError
	)

	switch {
	case errors.As(err, &srcErr):
		body := errorBody{Error: "unsupported or malformed url", Example: source.Example(srcErr.Platform)}
		if errors.Is(err, source.ErrInvalidContentURL) {
			body.Error = "url does not point to downloadable content"
		}
		return http.StatusBadRequest, body

	case errors.Is(err, delivery.ErrInvalidProfile):
		return http.StatusBadRequest, errorBody{Error: err.Error()}

	case errors.Is(err, resolver.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "media not found"}

	case errors.Is(err, context.Canceled):
		return statusClientClosed, errorBody{Error: "request canceled"}
	}

	retry := extractor.IsTransient(err)
	if errors.As(err, &resErr) {
		retry = resErr.Retryable()
	}

	switch {
	case errors.Is(err, extractor.ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorBody{Error: "upstream timed out", Retry: true}
	case errors.Is(err, extractor.ErrUnavailable), errors.Is(err, transcoder.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: "media tools unavailable", Retry: true}
	case errors.Is(err, extractor.ErrOutputTooLarge):
		return http.StatusBadGateway, errorBody{Error: "upstream response too large"}
	case errors.Is(err, extractor.ErrManifestParse):
		return http.StatusBadGateway, errorBody{Error: "upstream returned an unreadable response", Retry: retry}
	case errors.As(err, &xErr), errors.Is(err, extractor.ErrEmptyOutput):
		return http.StatusBadGateway, errorBody{Error: "could not extract media", Retry: retry}
	case errors.Is(err, profilepic.ErrUpstream), errors.Is(err, delivery.ErrImageUpstream):
		return http.StatusBadGateway, errorBody{Error: "upstream request failed", Retry: true}
	case errors.Is(err, delivery.ErrNoOutput):
		return http.StatusBadGateway, errorBody{Error: "media could not be prepared", Retry: true}
	case errors.Is(err, resolver.ErrResolutionFailed):
		return http.StatusBadGateway, errorBody{Error: "could not resolve media", Retry: retry}
	}

	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

// writeError answers with the classified error unless the client is gone.
func writeError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)
	if status == statusClientClosed {
		return
	}
	writeJSONError(w, body, status)
}
