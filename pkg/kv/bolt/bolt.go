// Package bolt provides a kv.Driver on a single bbolt database file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/streamrelay/streamrelay/pkg/kv"
)

var bucketName = []byte("kv")

// record is the JSON value stored per key. ExpiresAt is unix milliseconds,
// 0 for no expiry.
type record struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixMilli() >= r.ExpiresAt
}

// Driver implements kv.Driver on bbolt.
type Driver struct {
	db *bolt.DB
}

var _ kv.Driver = (*Driver)(nil)

// NewDriver opens (or creates) the database file at path.
func NewDriver(path string) (*Driver, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Driver{db: db}, nil
}

// load reads the live record for key. Expired records read as missing.
func load(b *bolt.Bucket, key string, now time.Time) (record, bool, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return record{}, false, nil
	}

	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return record{}, false, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if r.expired(now) {
		return record{}, false, nil
	}
	return r, true, nil
}

func store(b *bolt.Bucket, key string, r record) error {
	v, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return b.Put([]byte(key), v)
}

// Get returns the value stored at key.
func (d *Driver) Get(_ context.Context, key string) (string, error) {
	var (
		r     record
		found bool
	)
	err := d.db.View(func(tx *bolt.Tx) error {
		var err error
		r, found, err = load(tx.Bucket(bucketName), key, time.Now())
		return err
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", kv.NotFoundError{Key: key}
	}
	return r.Value, nil
}

// Set stores value at key.
func (d *Driver) Set(_ context.Context, key, value string, opts kv.SetOptions) (bool, error) {
	if err := opts.Validate(); err != nil {
		return false, err
	}

	written := false
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		now := time.Now()

		_, exists, err := load(b, key, now)
		if err != nil {
			return err
		}
		if (opts.NX && exists) || (opts.XX && !exists) {
			return nil
		}

		r := record{Value: value}
		if at := opts.ExpiresAt(now); !at.IsZero() {
			r.ExpiresAt = at.UnixMilli()
		}
		if err := store(b, key, r); err != nil {
			return err
		}
		written = true
		return nil
	})
	return written, err
}

// Decr decrements the integer stored at key inside one write transaction.
func (d *Driver) Decr(_ context.Context, key string) (int64, error) {
	var next int64
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)

		r, exists, err := load(b, key, time.Now())
		if err != nil {
			return err
		}

		current := int64(0)
		if exists {
			n, err := strconv.ParseInt(r.Value, 10, 64)
			if err != nil || n == math.MinInt64 {
				return kv.ErrNotInteger
			}
			current = n
		}

		next = current - 1
		r.Value = strconv.FormatInt(next, 10)
		return store(b, key, r)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Close closes the database file.
func (d *Driver) Close() error {
	return d.db.Close()
}
