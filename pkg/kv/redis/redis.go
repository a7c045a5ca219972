// Package redis provides a Redis-backed kv.Driver using go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/streamrelay/streamrelay/pkg/kv"
)

// Driver implements kv.Driver on a Redis server.
type Driver struct {
	client *goredis.Client
}

var _ kv.Driver = (*Driver)(nil)

// NewDriver connects to target, which is either a redis:// or rediss://
// URL or a bare host:port address, and verifies the connection.
func NewDriver(ctx context.Context, target string) (*Driver, error) {
	opts, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Driver{client: client}, nil
}

func parseTarget(target string) (*goredis.Options, error) {
	if target == "" {
		return nil, errors.New("redis target is required")
	}
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		opts, err := goredis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		return opts, nil
	}
	return &goredis.Options{Addr: target}, nil
}

// Get returns the value stored at key.
func (d *Driver) Get(ctx context.Context, key string) (string, error) {
	v, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", kv.NotFoundError{Key: key}
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// Set stores value at key with SET ... [EX|PX] [NX|XX].
func (d *Driver) Set(ctx context.Context, key, value string, opts kv.SetOptions) (bool, error) {
	if err := opts.Validate(); err != nil {
		return false, err
	}

	args := goredis.SetArgs{TTL: opts.TTL()}
	switch {
	case opts.NX:
		args.Mode = "NX"
	case opts.XX:
		args.Mode = "XX"
	}

	err := d.client.SetArgs(ctx, key, value, args).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}
	return true, nil
}

// Decr runs DECR on key.
func (d *Driver) Decr(ctx context.Context, key string) (int64, error) {
	n, err := d.client.Decr(ctx, key).Result()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, kv.ErrNotInteger
		}
		return 0, fmt.Errorf("redis decr: %w", err)
	}
	return n, nil
}

// Close closes the client.
func (d *Driver) Close() error {
	return d.client.Close()
}
