package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type returned by retrievers, sources and
// the factory.
type Error struct {
	// Code is the unique error code (e.g., "ERR_101_UNKNOWN_STRATEGY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Validation, Retrieval).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable hint for the caller.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, or by category when the target is a category
// sentinel (a target with an empty code).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Category != "" && e.Category == t.Category
	}
	return e.Code == t.Code
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an Error from an existing error. An error that already is
// an *Error is returned unchanged.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(code, err.Error(), err)
}

// Category sentinels for errors.Is.
var (
	// ErrConfiguration matches every configuration error.
	ErrConfiguration = &Error{Category: CategoryConfig, Message: "configuration error"}
	// ErrRetrieval matches every retrieval error.
	ErrRetrieval = &Error{Category: CategoryRetrieval, Message: "retrieval error"}
)

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// UnknownStrategy reports a strategy type nobody registered.
func UnknownStrategy(kind string) *Error {
	return New(ErrCodeUnknownStrategy, fmt.Sprintf("unknown retriever type %q", kind), nil).
		WithDetail("type", kind).
		WithSuggestion("run `retrieve types` to list the registered strategies")
}

// RetrievalError creates a retrieval error for the named strategy.
func RetrievalError(kind string, cause error) *Error {
	msg := "retrieval failed"
	if kind != "" {
		msg = kind + " retrieval failed"
	}
	return New(ErrCodeRetrievalFailed, msg, cause).WithDetail("retriever", kind)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return err != nil && errors.Is(err, ErrConfiguration)
}

// IsRetrieval reports whether err is a retrieval error.
func IsRetrieval(err error) bool {
	return err != nil && errors.Is(err, ErrRetrieval)
}

// GetCode extracts the error code from an Error.
// Returns empty string if err does not carry one.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
