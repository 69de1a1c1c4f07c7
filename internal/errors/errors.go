package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
	// Values holds the offending inputs, keyed by name.
	Values map[string]float64
}

func (e *AppError) Error() string {
	msg, cause := e.Message, e.Cause
	if msg == "" && cause != nil {
		msg, cause = cause.Error(), nil
	}
	if len(e.Values) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, formatValues(e.Values))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %v", msg, cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func formatValues(values map[string]float64) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, values[k]))
	}
	return strings.Join(parts, ", ")
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
			Values:  appErr.Values,
		}
	}
	return &AppError{
		Code:  code,
		Cause: err,
	}
}

// WithValues attaches offending values to the error.
func (e *AppError) WithValues(kv ...interface{}) *AppError {
	if e.Values == nil {
		e.Values = make(map[string]float64, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case float64:
			e.Values[name] = v
		case int:
			e.Values[name] = float64(v)
		}
	}
	return e
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code of the outermost AppError in the chain, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether the outermost AppError in the chain carries code.
// Codes of errors it wraps are causes, not the error's kind.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Message returns the message of the outermost AppError, otherwise err.Error()
func Message(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// Predefined error codes
const (
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeInternalError = "INTERNAL_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"

	// Decline-curve engine
	CodeInvalidData = "INVALID_DATA"
	CodeConvergence = "CONVERGENCE"
	CodeDomain      = "DOMAIN"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// InvalidData reports a series that cannot be fitted: empty after filtering,
// degenerate scale, or non-finite values.
func InvalidData(message string, kv ...interface{}) *AppError {
	return New(CodeInvalidData, message).WithValues(kv...)
}

// Convergence reports an optimizer run that ended without a valid solution.
func Convergence(message string, kv ...interface{}) *AppError {
	return New(CodeConvergence, message).WithValues(kv...)
}

// Domain reports an evaluation outside the model's physically valid range.
func Domain(message string, kv ...interface{}) *AppError {
	return New(CodeDomain, message).WithValues(kv...)
}

func IsInvalidData(err error) bool { return HasCode(err, CodeInvalidData) }

func IsConvergence(err error) bool { return HasCode(err, CodeConvergence) }

func IsDomain(err error) bool { return HasCode(err, CodeDomain) }
