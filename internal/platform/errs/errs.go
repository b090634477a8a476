// Package errs defines the error taxonomy shared by the allocation
// engine: not-found, validation, conflict, and configuration errors.
// Handlers map each kind to an HTTP status via HTTPError.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an engine error.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindConflict
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindConfiguration:
		return "configuration"
	}
	return "unknown"
}

// Error is an engine error with a classification kind.
type Error struct {
	Kind    Kind
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is lets errors.Is match on kind sentinels created by the helpers.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...interface{}) error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// IllegalState builds the validation error every transition raises when
// a bed or patient is not in the state the transition requires.
func IllegalState(entity string, expected, actual fmt.Stringer) error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("%s is in state %q, expected %q", entity, actual, expected),
	}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPError converts an engine error to the echo error the transport
// layer should return.
func HTTPError(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch e.Kind {
	case KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, e.Error())
	case KindValidation:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, e.Error())
	case KindConflict:
		return echo.NewHTTPError(http.StatusConflict, e.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, e.Error())
	}
}
