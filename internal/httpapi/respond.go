package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"riverbank/internal/riverbank"
)

// User-facing error messages.
const (
	msgModeration     = "Your content contains inappropriate content and cannot be sent"
	msgRateLimited    = "Too many requests. Please try again later."
	msgNotFound       = "Bottle not found"
	msgInternal       = "Internal server error"
	msgInvalidRequest = "Invalid request body"
)

// Reason codes for errors that do not originate in validation.
const (
	reasonInvalidRequest = "invalid_request"
	reasonModeration     = "moderation_rejected"
	reasonRateLimited    = "rate_limited"
	reasonNotFound       = "not_found"
	reasonInternal       = "internal_error"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, errorResponse{Error: message, Reason: reason})
}

// fail maps a service error onto a response. Unexpected errors are logged
// and reported generically.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	if ve, ok := riverbank.IsValidationError(err); ok {
		s.metrics.Outcome(operation, ve.Reason)
		writeError(w, http.StatusBadRequest, ve.Reason, ve.Message)
		return
	}

	switch {
	case errors.Is(err, riverbank.ErrModerationRejected):
		s.metrics.Outcome(operation, reasonModeration)
		writeError(w, http.StatusBadRequest, reasonModeration, msgModeration)
	case errors.Is(err, riverbank.ErrRateLimited):
		s.metrics.Outcome(operation, reasonRateLimited)
		w.Header().Set("Retry-After", strconv.Itoa(int(s.opts.RetryAfter.Seconds())))
		writeError(w, http.StatusTooManyRequests, reasonRateLimited, msgRateLimited)
	case errors.Is(err, riverbank.ErrNotFound):
		s.metrics.Outcome(operation, reasonNotFound)
		writeError(w, http.StatusNotFound, reasonNotFound, msgNotFound)
	default:
		s.metrics.Outcome(operation, reasonInternal)
		s.logger.Error("request failed", "operation", operation, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, reasonInternal, msgInternal)
	}
}
