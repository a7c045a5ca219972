// Package utils selects and opens a kv.Driver by provider name.
package utils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/kv/bolt"
	"github.com/streamrelay/streamrelay/pkg/kv/inmemory"
	"github.com/streamrelay/streamrelay/pkg/kv/postgres"
	"github.com/streamrelay/streamrelay/pkg/kv/redis"
	"github.com/streamrelay/streamrelay/pkg/kv/sqlite"
)

const (
	ProviderMemory   = "memory"
	ProviderRedis    = "redis"
	ProviderBolt     = "bolt"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
)

// Providers lists the supported provider names.
var Providers = []string{ProviderMemory, ProviderRedis, ProviderBolt, ProviderSQLite, ProviderPostgres}

// Options selects a driver. Target is the provider-specific location: an
// address or URL for redis, a file path for bolt and sqlite, a connection
// string for postgres. It is ignored for memory.
type Options struct {
	Provider string
	Target   string
	Logger   *slog.Logger
}

// NewDriver opens the driver named by opts.Provider. An empty provider
// selects the in-memory driver.
func NewDriver(ctx context.Context, opts Options) (kv.Driver, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = ProviderMemory
	}
	if provider != ProviderMemory && opts.Target == "" {
		return nil, fmt.Errorf("kv provider %q requires a target", provider)
	}

	var (
		driver kv.Driver
		err    error
	)
	switch provider {
	case ProviderMemory:
		driver = inmemory.NewDriver()
	case ProviderRedis:
		driver, err = redis.NewDriver(ctx, opts.Target)
	case ProviderBolt:
		driver, err = bolt.NewDriver(opts.Target)
	case ProviderSQLite:
		driver, err = sqlite.NewDriver(ctx, opts.Target)
	case ProviderPostgres:
		driver, err = postgres.NewDriver(ctx, opts.Target)
	default:
		return nil, fmt.Errorf("unknown kv provider %q (supported: %s)", opts.Provider, strings.Join(Providers, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s kv store: %w", provider, err)
	}

	if opts.Logger != nil {
		opts.Logger.Info("using kv storage", "provider", provider)
	}
	return driver, nil
}
