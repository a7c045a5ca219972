// Package kv defines the key-value storage contract behind the quota
// service. Values are strings; counters are stored as decimal integers and
// follow Redis DECR semantics.
package kv

import (
	"context"
	"errors"
	"time"
)

// Driver is a string key-value store with optional expiry.
type Driver interface {
	// Get returns the value stored at key, or a NotFoundError.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. It returns false, without error, when NX or
	// XX prevented the write.
	Set(ctx context.Context, key, value string, opts SetOptions) (bool, error)

	// Decr decrements the integer at key by one and returns the new value.
	// A missing key counts as 0. A value that is not an integer fails with
	// ErrNotInteger. Any expiry on the key is kept.
	Decr(ctx context.Context, key string) (int64, error)

	// Close releases any resources held by the driver.
	Close() error
}

// SetOptions control expiry and conditional writes for Set.
type SetOptions struct {
	// EX expires the key after this many seconds.
	EX int64 `json:"ex,omitempty"`

	// PX expires the key after this many milliseconds. Ignored when EX is set.
	PX int64 `json:"px,omitempty"`

	// NX only writes when the key does not exist.
	NX bool `json:"nx,omitempty"`

	// XX only writes when the key already exists.
	XX bool `json:"xx,omitempty"`
}

// ErrInvalidOptions is returned for contradictory or negative SetOptions.
var ErrInvalidOptions = errors.New("invalid set options")

// Validate rejects NX together with XX and negative expiries.
func (o SetOptions) Validate() error {
	if o.NX && o.XX {
		return errors.Join(ErrInvalidOptions, errors.New("nx and xx are mutually exclusive"))
	}
	if o.EX < 0 || o.PX < 0 {
		return errors.Join(ErrInvalidOptions, errors.New("expiry must not be negative"))
	}
	return nil
}

// TTL returns the expiry requested by the options, or 0 for none.
func (o SetOptions) TTL() time.Duration {
	switch {
	case o.EX > 0:
		return time.Duration(o.EX) * time.Second
	case o.PX > 0:
		return time.Duration(o.PX) * time.Millisecond
	default:
		return 0
	}
}

// ExpiresAt returns the absolute expiry relative to now, or the zero time.
func (o SetOptions) ExpiresAt(now time.Time) time.Time {
	ttl := o.TTL()
	if ttl == 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
