package kv

import "errors"

// ErrNotFound matches every NotFoundError via errors.Is.
var ErrNotFound = errors.New("key not found")

// ErrNotInteger is returned by Decr when the stored value is not an integer.
var ErrNotInteger = errors.New("value is not an integer or out of range")

// NotFoundError is returned when a key doesn't exist or has expired.
type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return ErrNotFound.Error()
	}
	return "key not found: " + e.Key
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
