// Package api provides the quota service: an HTTP key-value API over a
// kv.Driver holding per-token usage counters.
package api

// Config is the quota service configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// Credential, when set, must be presented as a bearer token on every
	// /quota route.
	Credential string
}
