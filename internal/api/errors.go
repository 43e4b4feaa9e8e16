package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/render"
	"github.com/joestump/docmerge/internal/store"
)

// retryAfterSeconds is advertised on retryable render failures.
const retryAfterSeconds = "5"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeFailure maps a domain error onto the standard error response.
// Unexpected errors are logged and reported as INTERNAL_ERROR.
func writeFailure(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "FORBIDDEN")
	case errors.Is(err, engine.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_OPTION")
	case errors.Is(err, engine.ErrElementRetired):
		writeError(w, http.StatusBadRequest, err.Error(), "ELEMENT_RETIRED")
	case errors.Is(err, store.ErrDuplicateLabel), errors.Is(err, store.ErrEmptyLabel):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_OPTIONS")
	case errors.Is(err, store.ErrSectionRetired):
		writeError(w, http.StatusBadRequest, err.Error(), "SECTION_RETIRED")
	case errors.Is(err, document.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error(), "UNSUPPORTED_FORMAT")
	case errors.Is(err, engine.ErrExtractionFailed), errors.Is(err, document.ErrCorrupt):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "EXTRACTION_FAILED")
	case render.IsRetryable(err):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, err.Error(), "RENDER_UNAVAILABLE")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}
