package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alamin-nifty/enviromoon-mobile/internal/enviromoon"
)

// ErrorCode is a string type for consistent error codes
type ErrorCode string

// Error codes returned by the API
const (
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeValidationFailed    ErrorCode = "validation_failed"
	ErrorCodeInvalidFormat       ErrorCode = "invalid_format"
	ErrorCodeMissingParameter    ErrorCode = "missing_parameter"
	ErrorCodeUpstreamError       ErrorCode = "upstream_error"
	ErrorCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrorCodeUnavailable         ErrorCode = "service_unavailable"
)

// APIError is the JSON error body of every failed request
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	StatusCode int       `json:"-"`
}

// Error makes APIError implement the error interface
func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAPIError is a constructor for APIError
func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// fromBackend maps a backend client error to an API error.
// Upstream HTTP statuses pass through unchanged.
func fromBackend(err error) APIError {
	var upstream *enviromoon.APIError
	switch {
	case errors.Is(err, enviromoon.ErrInvalidInterval), errors.Is(err, enviromoon.ErrInvalidRequest):
		return NewAPIError(ErrorCodeValidationFailed, err.Error(), nil, http.StatusBadRequest)
	case errors.As(err, &upstream):
		return NewAPIError(ErrorCodeUpstreamError, "backend rejected the request", upstream.Body, upstream.StatusCode)
	default:
		return NewAPIError(ErrorCodeUpstreamUnavailable, err.Error(), nil, http.StatusBadGateway)
	}
}
