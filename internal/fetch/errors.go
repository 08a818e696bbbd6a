package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure and determines how the caller reacts:
// Transient failures are retried with backoff, Malformed responses are not
// retried, and AuthFailure escalates immediately.
type Kind int

// Failure kinds.
const (
	Transient Kind = iota
	Malformed
	AuthFailure
)

// String returns the kind's name for logging.
func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case AuthFailure:
		return "auth_failure"
	default:
		return "transient"
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transientf(format string, args ...any) error {
	return &Error{Kind: Transient, Err: fmt.Errorf(format, args...)}
}

func malformedf(format string, args ...any) error {
	return &Error{Kind: Malformed, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from an error chain. Unclassified errors
// (plain network failures, context timeouts) are treated as transient.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Transient
}
