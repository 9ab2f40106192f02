package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/manifoldco/promptui"

	"repofleet/pkg/config"
	"repofleet/pkg/github"
)

// ErrorType represents different types of login errors
type ErrorType string

const (
	ErrorTypeCancelled          ErrorType = "cancelled"
	ErrorTypeInvalidToken       ErrorType = "invalid_token"
	ErrorTypeInsufficientScopes ErrorType = "insufficient_scopes"
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeRateLimited        ErrorType = "rate_limited"
	ErrorTypeConfigAccess       ErrorType = "config_access"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error represents a structured login error with troubleshooting guidance
type Error struct {
	Type                 ErrorType `json:"type"`
	Message              string    `json:"message"`
	OriginalError        error     `json:"-"`
	TroubleshootingSteps []string  `json:"troubleshooting_steps"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the original error for error unwrapping
func (e *Error) Unwrap() error {
	return e.OriginalError
}

// IsRetryable returns true if running the login again may succeed unchanged
func (e *Error) IsRetryable() bool {
	return e.Type == ErrorTypeNetwork || e.Type == ErrorTypeRateLimited
}

// GetTroubleshootingMessage returns a formatted troubleshooting message
func (e *Error) GetTroubleshootingMessage() string {
	if len(e.TroubleshootingSteps) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\nTroubleshooting steps:\n")
	for i, step := range e.TroubleshootingSteps {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}
	return sb.String()
}

// ClassifyError analyzes an error and returns a structured Error
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}

	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return &Error{
			Type:          ErrorTypeCancelled,
			Message:       "Login cancelled",
			OriginalError: err,
		}
	}

	if errors.Is(err, github.ErrMissingScopes) {
		return &Error{
			Type:          ErrorTypeInsufficientScopes,
			Message:       "The GitHub token is missing required scopes",
			OriginalError: err,
			TroubleshootingSteps: []string{
				fmt.Sprintf("Create a classic token with the scopes: %s", strings.Join(github.RequiredScopes, ", ")),
				"Fine-grained tokens need administration and members write access on every managed organisation",
			},
		}
	}

	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &Error{
			Type:          ErrorTypeConfigAccess,
			Message:       fmt.Sprintf("Unable to access %s", pathErr.Path),
			OriginalError: err,
			TroubleshootingSteps: []string{
				fmt.Sprintf("Check permissions of the directory holding %s", config.DisplayPath()),
				"Ensure you have write access to your home directory",
			},
		}
	}

	return &Error{
		Type:          ErrorTypeUnknown,
		Message:       fmt.Sprintf("Login failed: %v", err),
		OriginalError: err,
		TroubleshootingSteps: []string{
			"Check your internet connection",
			"Try running the command again with --verbose",
		},
	}
}

func classifyAPIError(apiErr *github.APIError, err error) *Error {
	switch apiErr.Type {
	case github.ErrorTypeAuth:
		return &Error{
			Type:          ErrorTypeInvalidToken,
			Message:       "GitHub rejected the token",
			OriginalError: err,
			TroubleshootingSteps: []string{
				"Check that the token was copied completely",
				"Check that the token has not expired or been revoked",
				"Create a new token and run the login again",
			},
		}
	case github.ErrorTypeRateLimit:
		return &Error{
			Type:          ErrorTypeRateLimited,
			Message:       "GitHub rate limit exceeded",
			OriginalError: err,
			TroubleshootingSteps: []string{
				"Wait for the rate limit to reset and try again",
			},
		}
	case github.ErrorTypeNetwork:
		return &Error{
			Type:          ErrorTypeNetwork,
			Message:       "Unable to reach GitHub",
			OriginalError: err,
			TroubleshootingSteps: []string{
				"Check your internet connection",
				"Check proxy settings (HTTPS_PROXY) if you are behind a proxy",
				"Check https://www.githubstatus.com for outages",
			},
		}
	default:
		return &Error{
			Type:          ErrorTypeUnknown,
			Message:       fmt.Sprintf("GitHub token validation failed: %v", apiErr),
			OriginalError: err,
			TroubleshootingSteps: []string{
				"Try running the command again with --verbose",
			},
		}
	}
}
