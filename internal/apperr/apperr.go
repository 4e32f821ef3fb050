package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories every operation
// reports exactly one of.
type Kind int

const (
	// KindUnknown is the zero value and never assigned explicitly.
	KindUnknown Kind = iota

	// KindStateConflict covers double starts and stops without a start.
	KindStateConflict

	// KindResourceUnavailable covers missing devices, missing runtimes
	// and captures that produced no samples.
	KindResourceUnavailable

	// KindValidation covers missing, empty or oversized input files.
	KindValidation

	// KindExecution covers nonzero subprocess exits and unparseable output.
	KindExecution

	// KindConnectivity covers unreachable or timed-out remote backends.
	KindConnectivity

	// KindConfiguration covers bad devices, models and paths.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindStateConflict:
		return "state conflict"
	case KindResourceUnavailable:
		return "resource unavailable"
	case KindValidation:
		return "validation error"
	case KindExecution:
		return "execution failure"
	case KindConnectivity:
		return "connectivity error"
	case KindConfiguration:
		return "configuration error"
	default:
		return "unknown error"
	}
}

// Error is a classified error. The wrapped cause keeps the low-level
// diagnostic text; Sanitized strips it for path-bearing categories before
// the message crosses an outer boundary.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sanitized returns a user-facing message. Validation and configuration
// errors frequently embed filesystem paths, so only the classification and
// the short message survive for those.
func (e *Error) Sanitized() string {
	switch e.Kind {
	case KindValidation, KindConfiguration:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return e.Error()
	}
}

// New creates a classified error without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
