// Package inmemory provides a map-backed kv.Driver. Expired keys are removed
// lazily on access.
package inmemory

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/streamrelay/streamrelay/pkg/kv"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Driver implements kv.Driver using an in-memory map.
type Driver struct {
	// mu guards entries
	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time
}

var _ kv.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// lookup returns the live entry for key, dropping it if it has expired.
// Callers hold mu.
func (d *Driver) lookup(key string) (entry, bool) {
	e, ok := d.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(d.now()) {
		delete(d.entries, key)
		return entry{}, false
	}
	return e, true
}

// Get returns the value stored at key.
func (d *Driver) Get(_ context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.lookup(key)
	if !ok {
		return "", kv.NotFoundError{Key: key}
	}
	return e.value, nil
}

// Set stores value at key.
func (d *Driver) Set(_ context.Context, key, value string, opts kv.SetOptions) (bool, error) {
	if err := opts.Validate(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, exists := d.lookup(key)
	if (opts.NX && exists) || (opts.XX && !exists) {
		return false, nil
	}

	d.entries[key] = entry{
		value:     value,
		expiresAt: opts.ExpiresAt(d.now()),
	}
	return true, nil
}

// Decr decrements the integer stored at key.
func (d *Driver) Decr(_ context.Context, key string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.lookup(key)
	current := int64(0)
	if ok {
		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil || n == math.MinInt64 {
			return 0, kv.ErrNotInteger
		}
		current = n
	}

	next := current - 1
	e.value = strconv.FormatInt(next, 10)
	d.entries[key] = e
	return next, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
