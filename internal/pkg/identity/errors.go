package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is the definitive "no such customer" answer of a directory.
var ErrNotFound = errors.New("identity: no matching customer")

// ErrUnavailable matches every *UnavailableError through errors.Is.
var ErrUnavailable = errors.New("identity: resolver unavailable")

// UnavailableError reports that the directory backing identity resolution
// could not be reached or is misconfigured. It never means "not found".
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity unavailable: %s: %v", e.Reason, e.Err)
	}
	return "identity unavailable: " + e.Reason
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Unavailable builds an *UnavailableError.
func Unavailable(reason string, err error) *UnavailableError {
	return &UnavailableError{Reason: reason, Err: err}
}

// IsUnavailable reports whether err carries an *UnavailableError.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}

// transportFailure classifies an error raised while talking to a directory
// backend. Deadlines count as unavailability.
func transportFailure(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable(backend+" timeout", err)
	}
	return Unavailable(backend+" unreachable", err)
}
