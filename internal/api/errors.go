package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"dnakit/internal/service"
	"dnakit/internal/upstream"

	"github.com/rs/zerolog"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: APIError{Code: code, Message: message}})
}

// writeServiceError maps domain and upstream failures onto HTTP answers.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		message = "internal error"
	}
	writeError(w, status, code, message)
}

func classify(err error) (int, string) {
	var upErr *upstream.Error
	switch {
	case errors.Is(err, service.ErrBookingNotFound), errors.Is(err, service.ErrKitNotFound),
		errors.Is(err, upstream.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrActionNotAllowed):
		return http.StatusConflict, "ACTION_NOT_ALLOWED"
	case errors.Is(err, service.ErrStateChanged):
		return http.StatusConflict, "STATE_CHANGED"
	case errors.Is(err, service.ErrKitExists):
		return http.StatusConflict, "KIT_EXISTS"
	case errors.Is(err, service.ErrKitCreationBlocked):
		return http.StatusConflict, "KIT_CREATION_BLOCKED"
	case errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusBadRequest, "CONFIRMATION_REQUIRED"
	case errors.Is(err, service.ErrInvalidKitStatus):
		return http.StatusBadRequest, "INVALID_KIT_STATUS"
	case errors.As(err, &upErr):
		// The backend's verdict on the forwarded token is passed through.
		if upErr.StatusCode == http.StatusUnauthorized || upErr.StatusCode == http.StatusForbidden {
			return upErr.StatusCode, "UPSTREAM_REJECTED"
		}
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	case errors.Is(err, upstream.ErrMalformed), errors.Is(err, upstream.ErrUnavailable),
		errors.Is(err, upstream.ErrTooLarge):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
