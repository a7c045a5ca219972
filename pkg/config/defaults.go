package config

const (
	defaultRelayListen = ":8080"
	defaultUpstream    = "https://api.openai.com"
	defaultChatPath    = "v1/chat/completions"
	defaultRelayTO     = "5m"
	defaultWorkers     = 3

	defaultQuotaListen   = ":8081"
	defaultQuotaProvider = "memory"

	defaultClientRelayTarget = "http://localhost:8080"
	defaultClientQuotaTarget = "http://localhost:8081"
	defaultClientModel       = "gpt-3.5-turbo"
	defaultClientTimeout     = "30s"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "streamrelay.usage"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:   defaultRelayListen,
			Upstream: defaultUpstream,
			ChatPath: defaultChatPath,
			Timeout:  defaultRelayTO,
			Workers:  defaultWorkers,
		},
		Quota: QuotaConfig{
			Listen:   defaultQuotaListen,
			Provider: defaultQuotaProvider,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			QuotaTarget: defaultClientQuotaTarget,
			Model:       defaultClientModel,
			Timeout:     defaultClientTimeout,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
