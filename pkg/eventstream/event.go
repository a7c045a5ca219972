// Package eventstream defines the usage events emitted after a relayed
// stream completes, and the publisher contract used to ship them.
package eventstream

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeUsageRecorded is emitted after a relayed stream is charged.
	EventTypeUsageRecorded = "streamrelay.usage.recorded"

	fingerprintLen = 12
)

// UsageEvent is a transport-neutral payload describing one completed relay.
// It never carries the raw access token.
type UsageEvent struct {
	SchemaVersion    int       `json:"schema_version"`
	EventType        string    `json:"event_type"`
	EventID          string    `json:"event_id"`
	EmittedAt        time.Time `json:"emitted_at"`
	TokenFingerprint string    `json:"token_fingerprint"`
	Path             string    `json:"path,omitempty"`
	Fragments        int       `json:"fragments"`
	Bytes            int64     `json:"bytes"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationMs       int64     `json:"duration_ms"`

	// Remaining is the quota left after the charge, nil when the decrement
	// failed.
	Remaining *int64 `json:"remaining,omitempty"`
}

// Usage describes a completed relay before it becomes an event.
type Usage struct {
	Token       string
	Path        string
	Fragments   int
	Bytes       int64
	StartedAt   time.Time
	CompletedAt time.Time
	Remaining   *int64
}

// NewUsageEvent stamps u with an id, the emission time and the token
// fingerprint.
func NewUsageEvent(u Usage) *UsageEvent {
	return &UsageEvent{
		SchemaVersion:    SchemaVersionV1,
		EventType:        EventTypeUsageRecorded,
		EventID:          uuid.NewString(),
		EmittedAt:        time.Now().UTC(),
		TokenFingerprint: Fingerprint(u.Token),
		Path:             u.Path,
		Fragments:        u.Fragments,
		Bytes:            u.Bytes,
		StartedAt:        u.StartedAt,
		CompletedAt:      u.CompletedAt,
		DurationMs:       u.CompletedAt.Sub(u.StartedAt).Milliseconds(),
		Remaining:        u.Remaining,
	}
}

// Fingerprint returns a short, stable, non-reversible identifier for an
// access token, safe to log and publish.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
