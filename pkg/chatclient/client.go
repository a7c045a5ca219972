// Package chatclient consumes the relay.
//
// ChatStream opens a streaming chat request and delivers the accumulated
// assistant text as a sequence of Events: zero or more progress events, then
// exactly one terminal event (Final or an error). Two timers guard each
// stream. The connect timer fires when the relay does not answer in time and
// the read timer fires when no bytes arrive between two reads. Either timer,
// like an explicit Cancel, finalizes the stream with the text received so
// far rather than failing it.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/streamrelay/streamrelay/pkg/llm"
	"github.com/streamrelay/streamrelay/pkg/logger"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/proxy/header"
)

const (
	ChatStreamPath  = "/api/chat-stream"
	PassthroughPath = "/api/openai"
	UsagePath       = "/api/usage"

	// DefaultTimeout is used for both the connect and the read timer.
	DefaultTimeout = 30 * time.Second

	upstreamChatPath = "v1/chat/completions"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the relay address, e.g. "http://localhost:8080".
	BaseURL string

	// AccessToken is sent as the caller's quota token.
	AccessToken string

	// ConnectTimeout bounds the wait for the relay's response headers.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait between two reads of the streamed body.
	ReadTimeout time.Duration

	// ModelConfig holds default request overrides (model, temperature, ...).
	ModelConfig llm.ModelConfig

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the relay on behalf of one access token.
type Client struct {
	baseURL        string
	accessToken    string
	connectTimeout time.Duration
	readTimeout    time.Duration
	modelConfig    llm.ModelConfig
	httpClient     *http.Client
	logger         *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("relay base URL is required")
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		accessToken:    cfg.AccessToken,
		connectTimeout: cfg.ConnectTimeout,
		readTimeout:    cfg.ReadTimeout,
		modelConfig:    maps.Clone(cfg.ModelConfig),
		httpClient:     cfg.HTTPClient,
		logger:         cfg.Logger,
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = DefaultTimeout
	}
	if c.readTimeout <= 0 {
		c.readTimeout = DefaultTimeout
	}
	if c.httpClient == nil {
		// No client-wide timeout: the stream timers bound every wait.
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	return c, nil
}

// buildRequest projects messages into a request body, layering per-call model
// overrides over the client defaults.
func (c *Client) buildRequest(messages []llm.ChatMessage, opts StreamOptions, stream bool) ([]byte, error) {
	modelConfig := maps.Clone(c.modelConfig)
	if len(opts.ModelConfig) > 0 {
		if modelConfig == nil {
			modelConfig = make(llm.ModelConfig, len(opts.ModelConfig))
		}
		maps.Copy(modelConfig, opts.ModelConfig)
	}

	req := llm.NewChatRequest(messages, llm.RequestOptions{
		FilterBot:   opts.FilterBot,
		Stream:      stream,
		ModelConfig: modelConfig,
	})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating relay request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set(header.AccessTokenHeader, c.accessToken)
	}
	return req, nil
}

// RequestChat sends a non-streaming chat request through the relay's
// passthrough route. Assistant messages are left out of the request.
func (c *Client) RequestChat(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatResponse, error) {
	body, err := c.buildRequest(messages, StreamOptions{FilterBot: true}, false)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, PassthroughPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(header.PathHeader, upstreamChatPath)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting chat: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ErrRequest); err != nil {
		return nil, err
	}

	var out llm.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	return &out, nil
}

// RequestWithPrompt appends prompt as a user message to messages, sends the
// conversation and returns the first choice's content, or "" when the
// response carries no choices.
func (c *Client) RequestWithPrompt(ctx context.Context, messages []llm.ChatMessage, prompt string) (string, error) {
	history := make([]llm.ChatMessage, 0, len(messages)+1)
	history = append(history, messages...)
	history = append(history, llm.NewUserMessage(prompt))

	resp, err := c.RequestChat(ctx, history)
	if err != nil {
		return "", err
	}
	return llm.FirstChoiceContent(resp), nil
}

// RequestUsage returns the remaining quota of the client's access token.
// A denied token yields an error wrapping ErrUnauthorized.
func (c *Client) RequestUsage(ctx context.Context) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, UsagePath, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("requesting usage: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ErrRequest); err != nil {
		return 0, err
	}

	var env quota.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return 0, fmt.Errorf("decoding usage response: %w", err)
	}
	if env.Code != quota.CodeOK {
		return 0, &StatusError{StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	}
	return quota.ParseRemaining(env.Data)
}

// checkStatus maps a non-2xx response to a StatusError. 401 wraps
// ErrUnauthorized, anything else wraps fallback.
func checkStatus(resp *http.Response, fallback error) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &StatusError{StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	}
	return &StatusError{StatusCode: resp.StatusCode, Err: fallback}
}
