package chatclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the relay rejects the access token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStream is returned when the relay answers a stream request with a
	// non-success status other than 401.
	ErrStream = errors.New("stream error")

	// ErrRequest is returned when the relay answers a non-streaming request
	// with a non-success status other than 401.
	ErrRequest = errors.New("request error")
)

// StatusError carries the relay's HTTP status alongside the error kind.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: relay returned status %d", e.Err, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
