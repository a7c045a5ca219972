package quota

import (
	"context"
	"errors"
)

// ErrNoRecord is returned by a Store when the token has no quota record.
var ErrNoRecord = errors.New("no quota record")

// Record is the remaining quota for one access token.
type Record struct {
	Token     string
	Remaining int64
}

// SetOptions mirrors the options of a key-value SET: EX and PX set an expiry
// in seconds or milliseconds, NX only writes a missing key and XX only
// overwrites an existing one.
type SetOptions struct {
	EX int64 `json:"ex,omitempty"`
	PX int64 `json:"px,omitempty"`
	NX bool  `json:"nx,omitempty"`
	XX bool  `json:"xx,omitempty"`
}

// Store is the narrow contract the Gateway needs from a quota backend.
type Store interface {
	// Get returns the record for token, or ErrNoRecord.
	Get(ctx context.Context, token string) (Record, error)

	// Set writes value for token.
	Set(ctx context.Context, token string, value int64, opts SetOptions) error

	// Decrement atomically lowers the remaining quota by one and returns the
	// new record.
	Decrement(ctx context.Context, token string) (Record, error)
}
