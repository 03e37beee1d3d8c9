// Package utils holds the JSON envelope shared by every endpoint and the
// request validation helpers.
package utils

import (
	"encoding/json"
	"net/http"
)

// Error kinds carried in ErrorResponse.Error
const (
	ErrorKindBadRequest   = "bad_request"
	ErrorKindUnauthorized = "unauthorized"
	ErrorKindForbidden    = "forbidden"
	ErrorKindNotFound     = "not_found"
	ErrorKindConflict     = "conflict"
	ErrorKindRateLimited  = "rate_limit_exceeded"
	ErrorKindInternal     = "internal_error"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps 2xx payloads
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes data as JSON with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes 200 with data in the envelope
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteCreated writes 201 with data in the envelope
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// WriteNoContent writes 204
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, kind, message, fallback string, details map[string]interface{}) error {
	if message == "" {
		message = fallback
	}
	return WriteJSON(w, status, ErrorResponse{Error: kind, Message: message, Details: details})
}

// WriteBadRequest writes 400; details usually carry per-field messages
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusBadRequest, ErrorKindBadRequest, message, "Bad request", details)
}

// WriteUnauthorized writes 401
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusUnauthorized, ErrorKindUnauthorized, message, "Authentication required", nil)
}

// WriteForbidden writes 403
func WriteForbidden(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusForbidden, ErrorKindForbidden, message, "Access forbidden", nil)
}

// WriteNotFound writes 404
func WriteNotFound(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusNotFound, ErrorKindNotFound, message, "Resource not found", nil)
}

// WriteConflict writes 409
func WriteConflict(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusConflict, ErrorKindConflict, message, "Conflict", details)
}

// WriteTooManyRequests writes 429
func WriteTooManyRequests(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusTooManyRequests, ErrorKindRateLimited, message, "Rate limit exceeded", details)
}

// WriteInternalServerError writes 500. Callers pass a generic message; the
// cause belongs in the log.
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusInternalServerError, ErrorKindInternal, message, "Internal server error", nil)
}
