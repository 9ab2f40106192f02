package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
)

// ErrRemoteUnavailable matches every failure to read from or write to GitHub:
// authentication, permission, rate limit, not found and network errors alike.
var ErrRemoteUnavailable = errors.New("github unavailable")

// ErrorType represents different categories of GitHub API errors
type ErrorType string

const (
	ErrorTypeAuth       ErrorType = "authentication"
	ErrorTypePermission ErrorType = "permission"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// APIError represents a structured error from a GitHub call
type APIError struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Cause    error     `json:"-"`
	Resource string    `json:"resource,omitempty"`
	Field    string    `json:"field,omitempty"`
	Code     string    `json:"code,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Type, e.Resource, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is makes every APIError match ErrRemoteUnavailable
func (e *APIError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// WrapAPIError wraps an error returned by go-github or githubv4 into an APIError
func WrapAPIError(err error, resource string) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Resource == "" {
			apiErr.Resource = resource
		}
		return apiErr
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &APIError{
			Type:     ErrorTypeRateLimit,
			Message:  fmt.Sprintf("rate limit exceeded, resets at %v", rateErr.Rate.Reset.Time),
			Cause:    err,
			Resource: resource,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &APIError{
			Type:     ErrorTypeRateLimit,
			Message:  "secondary rate limit exceeded",
			Cause:    err,
			Resource: resource,
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return parseErrorResponse(respErr, resource)
	}

	if isNetworkError(err) {
		return &APIError{
			Type:     ErrorTypeNetwork,
			Message:  "network error occurred, check your connection",
			Cause:    err,
			Resource: resource,
		}
	}

	return &APIError{
		Type:     ErrorTypeUnknown,
		Message:  err.Error(),
		Cause:    err,
		Resource: resource,
	}
}

// parseErrorResponse classifies a GitHub error response by status code
func parseErrorResponse(respErr *github.ErrorResponse, resource string) *APIError {
	apiErr := &APIError{
		Resource: resource,
		Cause:    respErr,
	}

	switch respErr.Response.StatusCode {
	case http.StatusUnauthorized:
		apiErr.Type = ErrorTypeAuth
		apiErr.Message = "authentication failed, check your GitHub token"

	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(respErr.Message), "rate limit") {
			apiErr.Type = ErrorTypeRateLimit
			apiErr.Message = "GitHub API rate limit exceeded"
		} else {
			apiErr.Type = ErrorTypePermission
			apiErr.Message = "insufficient permissions, the token needs the repo and admin:org scopes"
		}

	case http.StatusNotFound:
		apiErr.Type = ErrorTypeNotFound
		switch {
		case strings.Contains(resource, "repository"):
			apiErr.Message = "repository not found, check the name and your access"
		case strings.Contains(resource, "team"):
			apiErr.Message = "team not found"
		case strings.Contains(resource, "organisation"):
			apiErr.Message = "organisation not found"
		default:
			apiErr.Message = "resource not found"
		}

	case http.StatusConflict:
		apiErr.Type = ErrorTypeConflict
		apiErr.Message = "resource conflict"
		if respErr.Message != "" {
			apiErr.Message = respErr.Message
		}

	case http.StatusUnprocessableEntity:
		apiErr.Type = ErrorTypeValidation
		apiErr.Message = "validation failed"
		if len(respErr.Errors) > 0 {
			var messages []string
			for _, e := range respErr.Errors {
				if e.Field != "" {
					messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
					if apiErr.Field == "" {
						apiErr.Field = e.Field
						apiErr.Code = e.Code
					}
				} else {
					messages = append(messages, e.Message)
				}
			}
			apiErr.Message = fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
		} else if respErr.Message != "" {
			apiErr.Message = fmt.Sprintf("validation failed: %s", respErr.Message)
		}

	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		apiErr.Type = ErrorTypeNetwork
		apiErr.Message = "GitHub API is temporarily unavailable"

	default:
		apiErr.Type = ErrorTypeUnknown
		apiErr.Message = respErr.Message
	}

	return apiErr
}

// isNetworkError checks if an error is a network-related error
func isNetworkError(err error) bool {
	errStr := strings.ToLower(err.Error())
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"timeout",
		"dial tcp",
		"eof",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a GitHub 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeNotFound
}

// PartialApplyError is returned when a reconcile failed after some writes were
// already applied. Applied writes are not rolled back.
type PartialApplyError struct {
	Applied []Change
	Failed  Change
	Err     error
}

// Error implements the error interface
func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("%s failed after %d applied change(s): %v", e.Failed, len(e.Applied), e.Err)
}

// Unwrap returns the error of the failed change
func (e *PartialApplyError) Unwrap() error {
	return e.Err
}

// AppliedOperations returns a description of each applied change
func (e *PartialApplyError) AppliedOperations() []string {
	ops := make([]string, 0, len(e.Applied))
	for _, c := range e.Applied {
		ops = append(ops, c.String())
	}
	return ops
}
