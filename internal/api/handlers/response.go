package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jewgo/backend/internal/infrastructure/observability"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

// ErrorBody is the error member of the response envelope
type ErrorBody struct {
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.GetLogger().Error().Err(err).Msg("failed to encode response")
	}
}

// respondWithError maps err onto a status code and a client-safe body.
// Wrapped store and driver errors never reach the client.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("request failed")
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	respondWithJSON(w, status, errorEnvelope{Success: false, Error: body})
}

func errorResponse(err error) (int, ErrorBody) {
	appErr, ok := apperrors.As(err)
	if !ok {
		return http.StatusInternalServerError, ErrorBody{
			Reason:  apperrors.ReasonInternal,
			Message: "internal server error",
		}
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeInvalidCursor:
		return http.StatusBadRequest, ErrorBody{Field: appErr.Field, Reason: appErr.Reason, Message: appErr.Message}
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorBody{Reason: apperrors.ReasonNotFound, Message: appErr.Message}
	case apperrors.ErrorTypeUpstreamTimeout:
		return http.StatusServiceUnavailable, ErrorBody{
			Reason:  apperrors.ReasonUpstreamTimeout,
			Message: "the directory is busy, please retry",
		}
	default:
		return http.StatusInternalServerError, ErrorBody{
			Reason:  apperrors.ReasonInternal,
			Message: "internal server error",
		}
	}
}
