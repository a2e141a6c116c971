package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfig marks a malformed or inconsistent configuration: the settings
// file, a persisted source, or the state file.
var ErrConfig = errors.New("invalid configuration")

// ParseError represents a settings error with a friendly message.
// It matches ErrConfig under errors.Is.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error, offending field)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Unwrap lets callers classify every ParseError as ErrConfig.
func (e *ParseError) Unwrap() error {
	return ErrConfig
}

// ValidationError names the settings field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "invalid setting " + e.Field + ": " + e.Message
	}
	return "invalid setting: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrConfig
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
