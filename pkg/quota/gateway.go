// Package quota decides whether an access token may use the relay.
//
// The Gateway looks up the token's remaining quota in a Store and collapses
// every failure (empty token, unreachable store, missing record, exhausted
// quota) into a single denial. Callers only ever see DenialPayload; the
// DeniedError reason exists for logs.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamrelay/streamrelay/pkg/eventstream"
)

// ErrDenied matches every *DeniedError via errors.Is.
var ErrDenied = errors.New("quota denied")

// Reason explains a denial. It is never sent to callers.
type Reason string

const (
	ReasonEmptyToken   Reason = "empty token"
	ReasonLookupFailed Reason = "lookup failed"
	ReasonNoRecord     Reason = "no record"
	ReasonExhausted    Reason = "exhausted"
)

// DeniedError is returned by Authorize when a token may not proceed.
type DeniedError struct {
	Reason Reason
	Err    error
}

func (e *DeniedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quota denied: %s: %v", e.Reason, e.Err)
	}
	return "quota denied: " + string(e.Reason)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

func (e *DeniedError) Unwrap() error {
	return e.Err
}

var denialPayload = []byte(`{"code":0,"message":"no available key!"}`)

// DenialMessage is the message carried by the uniform denial payload.
const DenialMessage = "no available key!"

// DenialPayload returns the uniform body sent for every denial.
func DenialPayload() []byte {
	out := make([]byte, len(denialPayload))
	copy(out, denialPayload)
	return out
}

// Gateway authorizes access tokens against a Store.
type Gateway struct {
	store  Store
	logger *slog.Logger
}

// NewGateway creates a Gateway backed by store.
func NewGateway(store Store, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:  store,
		logger: logger,
	}
}

// Authorize returns nil when token has a record with remaining > 0, and a
// *DeniedError otherwise. It never changes the stored quota.
func (g *Gateway) Authorize(ctx context.Context, token string) error {
	remaining, err := g.Remaining(ctx, token)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return g.deny(token, ReasonExhausted, nil)
	}
	return nil
}

// Remaining returns the quota left for token. Lookup failures are reported
// as a *DeniedError so callers can answer with the denial payload.
func (g *Gateway) Remaining(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, g.deny(token, ReasonEmptyToken, nil)
	}

	rec, err := g.store.Get(ctx, token)
	switch {
	case errors.Is(err, ErrNoRecord):
		return 0, g.deny(token, ReasonNoRecord, nil)
	case err != nil:
		return 0, g.deny(token, ReasonLookupFailed, err)
	}
	return rec.Remaining, nil
}

// Consume charges one unit of quota to token and returns what is left.
func (g *Gateway) Consume(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, &DeniedError{Reason: ReasonEmptyToken}
	}

	rec, err := g.store.Decrement(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("decrementing quota: %w", err)
	}

	g.logger.Debug("quota consumed",
		"token_fingerprint", eventstream.Fingerprint(token),
		"remaining", rec.Remaining,
	)
	return rec.Remaining, nil
}

func (g *Gateway) deny(token string, reason Reason, err error) error {
	denied := &DeniedError{Reason: reason, Err: err}

	attrs := []any{"reason", string(reason)}
	if token != "" {
		attrs = append(attrs, "token_fingerprint", eventstream.Fingerprint(token))
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	g.logger.Info("quota denied", attrs...)

	return denied
}
