// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/capflow/internal/infra/remote"
	"github.com/ManuGH/capflow/internal/log"
)

// APIError is the JSON error body of every non-2xx response.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrSessionNotFound = &APIError{Code: "SESSION_NOT_FOUND", Message: "session not found"}
	ErrSessionLimit    = &APIError{Code: "SESSION_LIMIT", Message: "too many active sessions"}
	ErrInvalidFlow     = &APIError{Code: "INVALID_FLOW", Message: "unknown validation type"}
	ErrInvalidEvent    = &APIError{Code: "INVALID_EVENT", Message: "unknown session event"}
	ErrInvalidBody     = &APIError{Code: "INVALID_BODY", Message: "request body could not be decoded"}
	ErrUploadRefused   = &APIError{Code: "UPLOAD_URL_REFUSED", Message: "upload url not allowed"}
	ErrInvalidConfig   = &APIError{Code: "INVALID_CONFIG", Message: "session configuration rejected"}
	ErrCommandNotFound = &APIError{Code: "COMMAND_NOT_FOUND", Message: "unknown or expired command"}
	ErrMediaTooLarge   = &APIError{Code: "MEDIA_TOO_LARGE", Message: "media exceeds the configured limit"}
	ErrShuttingDown    = &APIError{Code: "SHUTTING_DOWN", Message: "server is shutting down"}
)

// writeJSON writes v with the given status code. Encoding failures are only
// logged; the header is already sent.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().Err(err).Int("status", code).Msg("failed to encode JSON response")
	}
}

// writeError maps err to a status code and writes an APIError body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		switch {
		case errors.Is(err, remote.ErrUnknownCommand):
			apiErr = ErrCommandNotFound
		case errors.Is(err, remote.ErrClosed):
			apiErr = ErrSessionNotFound
		default:
			apiErr = &APIError{Code: "INTERNAL", Message: "internal server error"}
		}
	}
	status := statusFor(apiErr)
	if status >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str("code", apiErr.Code).Msg("request failed")
	}
	body := *apiErr
	body.RequestID = log.RequestIDFromContext(r.Context())
	if detail := detailOf(err, apiErr); detail != "" {
		body.Message = apiErr.Message + ": " + detail
	}
	writeJSON(w, status, body)
}

func statusFor(e *APIError) int {
	switch e {
	case ErrSessionNotFound, ErrCommandNotFound:
		return http.StatusNotFound
	case ErrSessionLimit:
		return http.StatusTooManyRequests
	case ErrUploadRefused:
		return http.StatusForbidden
	case ErrMediaTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrShuttingDown:
		return http.StatusServiceUnavailable
	case ErrInvalidFlow, ErrInvalidEvent, ErrInvalidBody, ErrInvalidConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// detailed carries the cause behind a sentinel APIError.
type detailed struct {
	apiErr *APIError
	cause  error
}

func (d *detailed) Error() string      { return d.apiErr.Message + ": " + d.cause.Error() }
func (d *detailed) As(target any) bool { return asAPIError(d.apiErr, target) }
func (d *detailed) Unwrap() error      { return d.cause }

func withDetail(e *APIError, cause error) error {
	return &detailed{apiErr: e, cause: cause}
}

func asAPIError(e *APIError, target any) bool {
	p, ok := target.(**APIError)
	if ok {
		*p = e
	}
	return ok
}

func detailOf(err error, apiErr *APIError) string {
	var d *detailed
	if errors.As(err, &d) && d.apiErr == apiErr {
		return d.cause.Error()
	}
	return ""
}
