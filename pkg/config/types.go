package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent streamrelay configuration stored as
// config.toml in the .streamrelay/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Relay   RelayConfig  `toml:"relay"`
	Quota   QuotaConfig  `toml:"quota"`
	Client  ClientConfig `toml:"client"`
	Events  EventsConfig `toml:"events"`
}

// RelayConfig holds streaming relay settings.
type RelayConfig struct {
	Listen   string `toml:"listen,omitempty"`
	Upstream string `toml:"upstream,omitempty"`
	ChatPath string `toml:"chat_path,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`

	// Timeout is a Go duration string bounding one upstream exchange.
	Timeout string `toml:"timeout,omitempty"`

	Workers uint `toml:"workers,omitempty"`
}

// QuotaConfig holds the quota service settings. Provider and Target select
// the key-value backend; URL, when set, points the relay at a remote quota
// service instead of a local backend.
type QuotaConfig struct {
	Listen     string `toml:"listen,omitempty"`
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	URL        string `toml:"url,omitempty"`
	Credential string `toml:"credential,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to running
// services (streamrelay chat, usage, quota). Targets are full URLs.
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
	QuotaTarget string `toml:"quota_target,omitempty"`
	AccessToken string `toml:"access_token,omitempty"`
	Model       string `toml:"model,omitempty"`

	// Timeout is a Go duration string used for both stream timers.
	Timeout string `toml:"timeout,omitempty"`
}

// EventsConfig selects where usage events are published.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of kafka brokers.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked by "config list".
	secret bool
}

func durationSetter(key string, field func(c *Config) *string) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*field(c) = v
		return nil
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"relay.upstream": {
		get: func(c *Config) string { return c.Relay.Upstream },
		set: func(c *Config, v string) error { c.Relay.Upstream = v; return nil },
	},
	"relay.chat_path": {
		get: func(c *Config) string { return c.Relay.ChatPath },
		set: func(c *Config, v string) error { c.Relay.ChatPath = v; return nil },
	},
	"relay.api_key": {
		get:    func(c *Config) string { return c.Relay.APIKey },
		set:    func(c *Config, v string) error { c.Relay.APIKey = v; return nil },
		secret: true,
	},
	"relay.timeout": {
		get: func(c *Config) string { return c.Relay.Timeout },
		set: durationSetter("relay.timeout", func(c *Config) *string { return &c.Relay.Timeout }),
	},
	"relay.workers": {
		get: func(c *Config) string {
			if c.Relay.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Relay.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for relay.workers: %w", err)
			}
			c.Relay.Workers = uint(n)
			return nil
		},
	},
	"quota.listen": {
		get: func(c *Config) string { return c.Quota.Listen },
		set: func(c *Config, v string) error { c.Quota.Listen = v; return nil },
	},
	"quota.provider": {
		get: func(c *Config) string { return c.Quota.Provider },
		set: func(c *Config, v string) error { c.Quota.Provider = v; return nil },
	},
	"quota.target": {
		get: func(c *Config) string { return c.Quota.Target },
		set: func(c *Config, v string) error { c.Quota.Target = v; return nil },
	},
	"quota.url": {
		get: func(c *Config) string { return c.Quota.URL },
		set: func(c *Config, v string) error { c.Quota.URL = v; return nil },
	},
	"quota.credential": {
		get:    func(c *Config) string { return c.Quota.Credential },
		set:    func(c *Config, v string) error { c.Quota.Credential = v; return nil },
		secret: true,
	},
	"client.relay_target": {
		get: func(c *Config) string { return c.Client.RelayTarget },
		set: func(c *Config, v string) error { c.Client.RelayTarget = v; return nil },
	},
	"client.quota_target": {
		get: func(c *Config) string { return c.Client.QuotaTarget },
		set: func(c *Config, v string) error { c.Client.QuotaTarget = v; return nil },
	},
	"client.access_token": {
		get:    func(c *Config) string { return c.Client.AccessToken },
		set:    func(c *Config, v string) error { c.Client.AccessToken = v; return nil },
		secret: true,
	},
	"client.model": {
		get: func(c *Config) string { return c.Client.Model },
		set: func(c *Config, v string) error { c.Client.Model = v; return nil },
	},
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: durationSetter("client.timeout", func(c *Config) *string { return &c.Client.Timeout }),
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
