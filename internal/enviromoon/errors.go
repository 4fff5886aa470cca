package enviromoon

import (
	"errors"
	"fmt"
)

// Validation errors returned before any request is issued
var (
	ErrInvalidInterval = errors.New("sampling interval must be a positive number of seconds")
	ErrInvalidRequest  = errors.New("invalid request")
)

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error %d", e.StatusCode)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status of an API error, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
