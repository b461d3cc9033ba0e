// Package errors provides the typed errors used across hourlyimage.
// Every error that leaves a package boundary carries a category so callers can tell
// configuration problems (fatal before any I/O) from API and transport failures.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	// TypeConfiguration covers malformed URLs, unreadable or incomplete credentials
	// and invalid configuration files. Raised before any network call.
	TypeConfiguration ErrorType = "configuration"
	// TypeAPI covers structured error lists returned by the API.
	TypeAPI ErrorType = "api"
	// TypeTransport covers every other failure to complete an HTTP exchange.
	TypeTransport ErrorType = "transport"
	// TypeValidation covers bad caller input.
	TypeValidation ErrorType = "validation"
)

// Error represents a custom error with type information and stack trace.
type Error struct {
	Type    ErrorType // The category of the error
	Message string    // A descriptive message about the error
	Err     error     // The underlying error, if any
	Stack   string    // The stack trace at the time of error creation
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Type, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new Error and captures the stack at the call site.
func New(errType ErrorType, message string, err error) *Error {
	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)
	return &Error{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   string(stack[:n]),
	}
}

// Wrap wraps an existing error with additional context and type information.
// It preserves the original error's stack trace if it's also an *Error.
func Wrap(err error, errType ErrorType, message string) *Error {
	if originalErr, ok := err.(*Error); ok {
		return &Error{
			Type:    errType,
			Message: message,
			Err:     originalErr,
			Stack:   originalErr.Stack,
		}
	}
	return New(errType, message, err)
}

// Configuration is shorthand for New(TypeConfiguration, message, err).
func Configuration(message string, err error) *Error {
	return New(TypeConfiguration, message, err)
}

// Transport is shorthand for New(TypeTransport, message, err).
func Transport(message string, err error) *Error {
	return New(TypeTransport, message, err)
}

// Validation is shorthand for New(TypeValidation, message, nil).
func Validation(message string) *Error {
	return New(TypeValidation, message, nil)
}

// Sentinels for errors.Is matching by category.
var (
	ErrConfiguration = &Error{Type: TypeConfiguration}
	ErrAPI           = &Error{Type: TypeAPI}
	ErrTransport     = &Error{Type: TypeTransport}
	ErrValidation    = &Error{Type: TypeValidation}
)

// TypeOf returns the category of err, or "" when err carries none.
func TypeOf(err error) ErrorType {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Type
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
