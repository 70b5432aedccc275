package vrm

import (
	"errors"
	"fmt"
)

var (
	// ErrDeadlineExceeded means the global time budget ran out before a
	// request could be started.
	ErrDeadlineExceeded = errors.New("global time budget exceeded")

	// ErrUnauthorized means the API rejected the token with a 401. It is
	// fatal and never retried.
	ErrUnauthorized = errors.New("401 unauthorized (invalid token or missing permissions)")

	// ErrRetriesExhausted means every attempt hit a timeout or
	// connection-level error.
	ErrRetriesExhausted = errors.New("retry budget exhausted")
)

// StatusError is a non-2xx HTTP response other than 401. Application-level
// errors are not transient, so these fail fast without retry.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vrm api returned status %d", e.Code)
}

// transportError marks a connect/read failure from the HTTP client. Only
// these (timeouts included) are retried.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

func transient(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}
