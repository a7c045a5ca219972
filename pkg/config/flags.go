package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --upstream
// on both "streamrelay serve" and "streamrelay serve relay").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "relay.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagRelayListen     = "relay-listen"
	FlagQuotaListen     = "quota-listen"
	FlagUpstream        = "upstream"
	FlagChatPath        = "chat-path"
	FlagAPIKey          = "api-key"
	FlagRelayTimeout    = "relay-timeout"
	FlagWorkers         = "workers"
	FlagQuotaStore      = "quota-store"
	FlagQuotaStoreTgt   = "quota-store-target"
	FlagQuotaURL        = "quota-url"
	FlagQuotaCredential = "quota-credential"
	FlagEventsProvider  = "events-provider"
	FlagEventsBrokers   = "events-brokers"
	FlagEventsTopic     = "events-topic"
	FlagRelayTarget     = "relay-target"
	FlagQuotaTarget     = "quota-target"
	FlagAccessToken     = "access-token"
	FlagModel           = "model"
	FlagClientTimeout   = "timeout"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagRelayListenStandalone = "relay-listen-standalone"
	FlagQuotaListenStandalone = "quota-listen-standalone"
)

// Flags is the shared registry used by every streamrelay command.
var Flags = FlagSet{
	FlagRelayListen:     {Name: "relay-listen", Shorthand: "p", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagQuotaListen:     {Name: "quota-listen", Shorthand: "a", ViperKey: "quota.listen", Description: "Address for the quota service to listen on"},
	FlagUpstream:        {Name: "upstream", Shorthand: "u", ViperKey: "relay.upstream", Description: "Upstream chat completion API base URL"},
	FlagChatPath:        {Name: "chat-path", ViperKey: "relay.chat_path", Description: "Upstream chat completion path"},
	FlagAPIKey:          {Name: "api-key", ViperKey: "relay.api_key", Description: "Upstream API key held by the relay"},
	FlagRelayTimeout:    {Name: "relay-timeout", ViperKey: "relay.timeout", Description: "Upper bound for one upstream exchange"},
	FlagWorkers:         {Name: "workers", ViperKey: "relay.workers", Description: "Number of usage workers"},
	FlagQuotaStore:      {Name: "quota-store", ViperKey: "quota.provider", Description: "Quota backend (memory, redis, bolt, sqlite, postgres)"},
	FlagQuotaStoreTgt:   {Name: "quota-store-target", ViperKey: "quota.target", Description: "Quota backend address, file or DSN"},
	FlagQuotaURL:        {Name: "quota-url", ViperKey: "quota.url", Description: "Remote quota service URL used by the relay"},
	FlagQuotaCredential: {Name: "quota-credential", ViperKey: "quota.credential", Description: "Bearer credential of the quota service"},
	FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Usage event publisher (nop, kafka)"},
	FlagEventsBrokers:   {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma separated kafka brokers"},
	FlagEventsTopic:     {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for usage events"},
	FlagRelayTarget:     {Name: "relay-target", Shorthand: "r", ViperKey: "client.relay_target", Description: "Relay URL"},
	FlagQuotaTarget:     {Name: "quota-target", Shorthand: "q", ViperKey: "client.quota_target", Description: "Quota service URL"},
	FlagAccessToken:     {Name: "access-token", Shorthand: "t", ViperKey: "client.access_token", Description: "Access token charged for requests"},
	FlagModel:           {Name: "model", Shorthand: "m", ViperKey: "client.model", Description: "Model requested from the upstream"},
	FlagClientTimeout:   {Name: "timeout", ViperKey: "client.timeout", Description: "Connect and read timeout of a chat stream"},

	FlagRelayListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagQuotaListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "quota.listen", Description: "Address for the quota service to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
