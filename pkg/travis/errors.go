package travis

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRemoteUnavailable matches every failed call to the Travis API
var ErrRemoteUnavailable = errors.New("travis unavailable")

// APIError is a non-success response from the Travis API
type APIError struct {
	StatusCode int
	// Type is the error_type reported by Travis, e.g. not_found.
	Type     string
	Message  string
	Resource string
	Cause    error
}

// Error implements the error interface
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("travis request for %s failed: %s", e.Resource, msg)
	}
	return fmt.Sprintf("travis returned %d for %s: %s", e.StatusCode, e.Resource, msg)
}

// Unwrap returns the transport error, if any
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is makes every APIError match ErrRemoteUnavailable
func (e *APIError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// IsNotFound reports whether err is a Travis 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
