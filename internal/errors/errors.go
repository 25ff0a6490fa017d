package errors

import (
	"errors"
	"fmt"
)

// TutorError is the structured error type for tutor.
// It provides rich context for error handling, logging, and user presentation.
type TutorError struct {
	// Code is the unique error code (e.g., "ERR_506_NO_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinel targets for errors.Is. They match any TutorError with the same code
// and must never be returned or mutated directly.
var (
	ErrNoIndex           = &TutorError{Code: ErrCodeNoIndex}
	ErrQueryEmpty        = &TutorError{Code: ErrCodeQueryEmpty}
	ErrModelMismatch     = &TutorError{Code: ErrCodeModelMismatch}
	ErrDimensionMismatch = &TutorError{Code: ErrCodeDimensionMismatch}
	ErrPersistFailed     = &TutorError{Code: ErrCodePersistFailed}
	ErrCorruptIndex      = &TutorError{Code: ErrCodeCorruptIndex}
	ErrConfigInvalid     = &TutorError{Code: ErrCodeConfigInvalid}
)

// Error implements the error interface.
func (e *TutorError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *TutorError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with TutorError.
func (e *TutorError) Is(target error) bool {
	if t, ok := target.(*TutorError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *TutorError) WithDetail(key, value string) *TutorError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *TutorError) WithSuggestion(suggestion string) *TutorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new TutorError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *TutorError {
	return &TutorError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a TutorError from an existing error.
// The error's message becomes the TutorError message.
func Wrap(code string, err error) *TutorError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *TutorError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// PersistError creates an artifact persistence error. These abort a build.
func PersistError(message string, cause error) *TutorError {
	return New(ErrCodePersistFailed, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *TutorError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *TutorError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *TutorError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain contains a TutorError with Retryable set.
func IsRetryable(err error) bool {
	var te *TutorError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var te *TutorError
	if errors.As(err, &te) {
		return te.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first TutorError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var te *TutorError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// GetCategory extracts the category from the first TutorError in the chain.
func GetCategory(err error) Category {
	var te *TutorError
	if errors.As(err, &te) {
		return te.Category
	}
	return ""
}
