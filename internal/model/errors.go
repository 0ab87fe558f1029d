package model

import "fmt"

// Format identifies the encoding an invoice record was read from
type Format string

const (
	FormatJSON    Format = "JSON"
	FormatCII     Format = "CII"
	FormatUnknown Format = "UNKNOWN"
)

// ParseError represents decoding errors with input format context
type ParseError struct {
	Format  Format
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Format, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Format, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(format Format, field, message string, cause error) *ParseError {
	return &ParseError{
		Format:  format,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError represents invalid configuration (templates, profiles,
// lookup tables, master data). Invoice content itself is never rejected.
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}
