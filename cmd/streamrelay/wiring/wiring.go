// Package wiring builds the services shared by streamrelay commands from the
// layered viper configuration.
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamrelay/streamrelay/api"
	"github.com/streamrelay/streamrelay/pkg/chatclient"
	"github.com/streamrelay/streamrelay/pkg/config"
	"github.com/streamrelay/streamrelay/pkg/dotdir"
	"github.com/streamrelay/streamrelay/pkg/eventstream"
	"github.com/streamrelay/streamrelay/pkg/eventstream/kafka"
	"github.com/streamrelay/streamrelay/pkg/eventstream/nop"
	"github.com/streamrelay/streamrelay/pkg/kv"
	kvutils "github.com/streamrelay/streamrelay/pkg/kv/utils"
	"github.com/streamrelay/streamrelay/pkg/llm"
	"github.com/streamrelay/streamrelay/pkg/logger"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/quota/httpstore"
	"github.com/streamrelay/streamrelay/pkg/quota/kvstore"
	"github.com/streamrelay/streamrelay/proxy"
)

const (
	EventsNop   = "nop"
	EventsKafka = "kafka"

	// UpstreamKeyEnv is read when relay.api_key is unset.
	UpstreamKeyEnv = "OPENAI_API_KEY"
)

// storeFiles names the default file of each file backed quota provider.
var storeFiles = map[string]string{
	kvutils.ProviderBolt:   "quota.bolt",
	kvutils.ProviderSQLite: "quota.sqlite",
}

// LoadViper builds the layered config for cmd and binds the given registry
// flags on top of it.
func LoadViper(cmd *cobra.Command, flagKeys []string) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
	return v, nil
}

// NewLogger returns the pretty CLI logger. With logFile set, records are
// also appended to that file as JSON; the returned func closes it.
func NewLogger(debug bool, logFile string) (*slog.Logger, func() error, error) {
	pretty := logger.New(logger.WithDebug(debug), logger.WithPretty(true))
	if logFile == "" {
		return pretty, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	structured := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(pretty, structured), f.Close, nil
}

// ResolveStoreTarget returns the backend target for provider. An explicit
// target always wins; file backed providers default to a file in the
// .streamrelay/ directory.
func ResolveStoreTarget(provider, target, configDir string) (string, error) {
	if target = strings.TrimSpace(target); target != "" {
		return target, nil
	}

	if provider == "" || provider == kvutils.ProviderMemory {
		return "", nil
	}

	name, ok := storeFiles[provider]
	if !ok {
		return "", fmt.Errorf("quota.target is required for the %s quota store", provider)
	}
	return dotdir.NewManager().File(configDir, name)
}

// NewDriver opens the key-value backend selected by quota.provider and
// quota.target.
func NewDriver(ctx context.Context, v *viper.Viper, configDir string, log *slog.Logger) (kv.Driver, error) {
	provider := v.GetString("quota.provider")

	target, err := ResolveStoreTarget(provider, v.GetString("quota.target"), configDir)
	if err != nil {
		return nil, err
	}

	return kvutils.NewDriver(ctx, kvutils.Options{
		Provider: provider,
		Target:   target,
		Logger:   log,
	})
}

// OpenQuotaStore returns the quota store used by the relay: the remote quota
// service when quota.url is set, a local backend otherwise. The returned
// func releases the store.
func OpenQuotaStore(ctx context.Context, v *viper.Viper, configDir string, log *slog.Logger) (quota.Store, func() error, error) {
	if url := v.GetString("quota.url"); url != "" {
		store, err := httpstore.New(httpstore.Config{
			BaseURL:    url,
			Credential: v.GetString("quota.credential"),
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("using remote quota service", "url", url)
		return store, func() error { return nil }, nil
	}

	driver, err := NewDriver(ctx, v, configDir, log)
	if err != nil {
		return nil, nil, err
	}
	return kvstore.New(driver), driver.Close, nil
}

// NewAdminStore returns a client of the quota service at client.quota_target.
func NewAdminStore(v *viper.Viper) (*httpstore.Store, error) {
	return httpstore.New(httpstore.Config{
		BaseURL:    v.GetString("client.quota_target"),
		Credential: v.GetString("quota.credential"),
	})
}

// NewPublisher returns the usage event publisher selected by events.provider.
func NewPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case "", EventsNop:
		return nop.NewPublisher(), nil

	case EventsKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: SplitList(v.GetString("events.brokers")),
			Topic:   v.GetString("events.topic"),
		})
		if err != nil {
			return nil, err
		}
		return pub, nil

	default:
		return nil, fmt.Errorf("unknown events provider: %q (available: %s, %s)", provider, EventsNop, EventsKafka)
	}
}

// RelayConfig maps the relay section onto proxy.Config.
func RelayConfig(v *viper.Viper) proxy.Config {
	return proxy.Config{
		ListenAddr:  v.GetString("relay.listen"),
		UpstreamURL: v.GetString("relay.upstream"),
		ChatPath:    v.GetString("relay.chat_path"),
		APIKey:      upstreamKey(v),
		Timeout:     v.GetDuration("relay.timeout"),
		Workers:     v.GetUint("relay.workers"),
	}
}

func upstreamKey(v *viper.Viper) string {
	if key := v.GetString("relay.api_key"); key != "" {
		return key
	}
	return os.Getenv(UpstreamKeyEnv)
}

// QuotaAPIConfig maps the quota section onto api.Config.
func QuotaAPIConfig(v *viper.Viper) api.Config {
	return api.Config{
		ListenAddr: v.GetString("quota.listen"),
		Credential: v.GetString("quota.credential"),
	}
}

// NewChatClient builds a relay client from the client section.
func NewChatClient(v *viper.Viper, log *slog.Logger) (*chatclient.Client, error) {
	timeout := v.GetDuration("client.timeout")

	var modelConfig llm.ModelConfig
	if model := v.GetString("client.model"); model != "" {
		modelConfig = llm.ModelConfig{"model": model}
	}

	return chatclient.New(chatclient.Config{
		BaseURL:        v.GetString("client.relay_target"),
		AccessToken:    v.GetString("client.access_token"),
		ConnectTimeout: timeout,
		ReadTimeout:    timeout,
		ModelConfig:    modelConfig,
		Logger:         log,
	})
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
