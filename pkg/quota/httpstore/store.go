// Package httpstore is a quota.Store that talks to a remote quota service
// over HTTP.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamrelay/streamrelay/pkg/quota"
)

const maxEnvelopeBytes = 1 << 20

// Config configures a Store.
type Config struct {
	// BaseURL is the quota service root, e.g. "http://localhost:8082".
	BaseURL string

	// Credential, when set, is sent as a bearer token on every call.
	Credential string

	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client
}

// Store implements quota.Store against the quota service endpoints
// GET /quota/{token}, POST /quota/{token} and POST /quota/{token}/decr.
type Store struct {
	baseURL    string
	credential string
	client     *http.Client
}

var _ quota.Store = (*Store)(nil)

// New creates a Store.
func New(cfg Config) (*Store, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("quota service URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parsing quota service URL: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Store{
		baseURL:    base,
		credential: cfg.Credential,
		client:     client,
	}, nil
}

// Get fetches the remaining quota for token.
func (s *Store) Get(ctx context.Context, token string) (quota.Record, error) {
	env, err := s.do(ctx, http.MethodGet, s.quotaURL(token), nil)
	if err != nil {
		return quota.Record{}, err
	}
	return toRecord(token, env)
}

type setBody struct {
	Value   int64            `json:"value"`
	Options quota.SetOptions `json:"options"`
}

// Set writes value for token.
func (s *Store) Set(ctx context.Context, token string, value int64, opts quota.SetOptions) error {
	body, err := json.Marshal(setBody{Value: value, Options: opts})
	if err != nil {
		return fmt.Errorf("encoding set request: %w", err)
	}

	env, err := s.do(ctx, http.MethodPost, s.quotaURL(token), body)
	if err != nil {
		return err
	}
	if env.Code != quota.CodeOK {
		return fmt.Errorf("quota service rejected set: %s", env.Message)
	}
	return nil
}

// Decrement lowers the quota for token by one.
func (s *Store) Decrement(ctx context.Context, token string) (quota.Record, error) {
	env, err := s.do(ctx, http.MethodPost, s.quotaURL(token)+"/decr", nil)
	if err != nil {
		return quota.Record{}, err
	}
	return toRecord(token, env)
}

func (s *Store) quotaURL(token string) string {
	return s.baseURL + "/quota/" + url.PathEscape(token)
}

func (s *Store) do(ctx context.Context, method, target string, body []byte) (quota.Envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return quota.Envelope{}, fmt.Errorf("creating quota request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.credential != "" {
		req.Header.Set("Authorization", "Bearer "+s.credential)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return quota.Envelope{}, fmt.Errorf("calling quota service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return quota.Envelope{}, fmt.Errorf("reading quota response: %w", err)
	}

	var env quota.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return quota.Envelope{}, fmt.Errorf("quota service returned status %d", resp.StatusCode)
		}
		return quota.Envelope{}, fmt.Errorf("decoding quota response: %w", err)
	}

	// A failure envelope is an answer, whatever the status. Anything else
	// outside 2xx is a service problem.
	if resp.StatusCode >= http.StatusBadRequest && env.Code == quota.CodeOK {
		return quota.Envelope{}, fmt.Errorf("quota service returned status %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode >= http.StatusInternalServerError {
		return quota.Envelope{}, fmt.Errorf("quota service returned status %d: %s", resp.StatusCode, env.Message)
	}
	return env, nil
}

func toRecord(token string, env quota.Envelope) (quota.Record, error) {
	if env.Code != quota.CodeOK || env.IsNull() {
		return quota.Record{}, quota.ErrNoRecord
	}

	n, err := quota.ParseRemaining(env.Data)
	if err != nil {
		return quota.Record{}, err
	}
	return quota.Record{Token: token, Remaining: n}, nil
}
