package proxy

import "time"

const (
	defaultChatPath = "v1/chat/completions"
	defaultTimeout  = 5 * time.Minute
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the chat completion API base URL (e.g., "https://api.openai.com")
	UpstreamURL string

	// ChatPath is the upstream chat completion path, relative to UpstreamURL.
	// Defaults to "v1/chat/completions".
	ChatPath string

	// APIKey is the server-held upstream credential shared by every
	// authorized caller.
	APIKey string

	// Timeout bounds a whole upstream exchange, including the streamed body.
	// Defaults to 5 minutes.
	Timeout time.Duration

	// Workers and QueueSize size the usage worker pool. Zero picks the pool
	// defaults.
	Workers   uint
	QueueSize uint
}

func (c Config) chatPath() string {
	if c.ChatPath == "" {
		return defaultChatPath
	}
	return c.ChatPath
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}
