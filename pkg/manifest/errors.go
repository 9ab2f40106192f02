package manifest

import (
	"fmt"
	"strings"
)

// FieldError describes one invalid manifest value
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *FieldError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s (value: %s): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors collects every invalid value found while loading a manifest
type FieldErrors []FieldError

// Error implements the error interface
func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("%d errors: %s", len(e), strings.Join(messages, "; "))
}

// Add appends a field error
func (e *FieldErrors) Add(field, value, message string) {
	*e = append(*e, FieldError{Field: field, Value: value, Message: message})
}

// HasErrors returns true if any field error was recorded
func (e FieldErrors) HasErrors() bool {
	return len(e) > 0
}

// MalformedConfigError is returned by Load when the document cannot be turned
// into a model. Either Err (a structural problem) or Fields is set.
type MalformedConfigError struct {
	Err    error
	Fields FieldErrors
}

// Error implements the error interface
func (e *MalformedConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed manifest: %v", e.Err)
	}
	return fmt.Sprintf("malformed manifest: %v", e.Fields)
}

// Unwrap returns the underlying structural error
func (e *MalformedConfigError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) *MalformedConfigError {
	return &MalformedConfigError{Err: fmt.Errorf(format, args...)}
}
