// Package httperr defines the JSON error body written by shuttle middleware
// and the helpers that encode it.
//
// Every error response has the same shape:
//
//	{"error": {"message": "...", "type": "invalid_request_error", "code": "..."}}
package httperr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the envelope written for all error conditions.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error and determines the HTTP status code.
	Type string `json:"type"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error types.
const (
	TypeInvalidRequest     = "invalid_request_error"
	TypeAuthentication     = "authentication_error"
	TypeNotFound           = "not_found"
	TypeRateLimit          = "rate_limit_error"
	TypeServerError        = "server_error"
	TypeServiceUnavailable = "service_unavailable"
)

// Error codes.
const (
	CodeContextExtraction = "context_extraction_failed"
	CodeInvalidToken      = "invalid_token"
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeInvalidValue      = "invalid_value"
	CodeInternalError     = "internal_error"
	CodeNotReady          = "not_ready"
	CodeTooManyStreams    = "too_many_streams"
	CodeRateLimited       = "rate_limited"
)

// New creates a new error response with the given details.
func New(message, errorType, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Code:    code,
		},
	}
}

// NewInvalidRequest creates an error response for invalid requests (400).
func NewInvalidRequest(message, code string) *ErrorResponse {
	return New(message, TypeInvalidRequest, code)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return New(message, TypeServerError, CodeInternalError)
}

// StatusCode returns the HTTP status code for the error type.
func (e *ErrorDetail) StatusCode() int {
	switch e.Type {
	case TypeInvalidRequest:
		return http.StatusBadRequest
	case TypeAuthentication:
		return http.StatusUnauthorized
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// Write writes errResp with the status code derived from its type.
func Write(w http.ResponseWriter, errResp *ErrorResponse) error {
	return WriteJSON(w, errResp.Error.StatusCode(), errResp)
}
