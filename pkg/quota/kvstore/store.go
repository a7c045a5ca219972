// Package kvstore is a quota.Store that reads counters straight from a
// kv.Driver, for running the relay without a separate quota service.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/quota"
)

// Store adapts a kv.Driver to quota.Store.
type Store struct {
	driver kv.Driver
}

var _ quota.Store = (*Store)(nil)

// New wraps driver.
func New(driver kv.Driver) *Store {
	return &Store{driver: driver}
}

// Get reads the counter for token.
func (s *Store) Get(ctx context.Context, token string) (quota.Record, error) {
	v, err := s.driver.Get(ctx, token)
	if errors.Is(err, kv.ErrNotFound) {
		return quota.Record{}, quota.ErrNoRecord
	}
	if err != nil {
		return quota.Record{}, err
	}

	n, err := quota.ParseRemaining([]byte(strconv.Quote(v)))
	if err != nil {
		return quota.Record{}, err
	}
	return quota.Record{Token: token, Remaining: n}, nil
}

// Set writes the counter for token.
func (s *Store) Set(ctx context.Context, token string, value int64, opts quota.SetOptions) error {
	_, err := s.driver.Set(ctx, token, strconv.FormatInt(value, 10), kv.SetOptions{
		EX: opts.EX,
		PX: opts.PX,
		NX: opts.NX,
		XX: opts.XX,
	})
	return err
}

// Decrement runs Decr on the token's counter.
func (s *Store) Decrement(ctx context.Context, token string) (quota.Record, error) {
	n, err := s.driver.Decr(ctx, token)
	if err != nil {
		return quota.Record{}, fmt.Errorf("decrementing quota counter: %w", err)
	}
	return quota.Record{Token: token, Remaining: n}, nil
}
