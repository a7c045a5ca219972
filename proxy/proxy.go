// Package proxy provides the streaming relay: it authorizes callers against
// their quota, forwards chat requests to the upstream chat completion API
// with a server-held key, and re-frames the upstream event stream into a
// plain byte stream of assistant text.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/streamrelay/streamrelay/pkg/eventstream"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/utils"
	"github.com/streamrelay/streamrelay/proxy/header"
	"github.com/streamrelay/streamrelay/proxy/worker"
)

const (
	// ChatStreamPath is the relay route.
	ChatStreamPath = "/api/chat-stream"

	// PassthroughPath forwards non-streaming requests verbatim.
	PassthroughPath = "/api/openai"

	// UsagePath reports the caller's remaining quota.
	UsagePath = "/api/usage"

	maxErrorBodyBytes  = 1 << 20
	maxLoggedBodyBytes = 512
)

// Proxy is the streaming relay. Completed streams are charged to the
// caller's quota asynchronously through its worker pool.
type Proxy struct {
	config        Config
	gateway       *quota.Gateway
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler

	// streams tracks pump goroutines that may still enqueue a job after
	// their handler has returned.
	streams sync.WaitGroup
}

// New creates a new Proxy.
// The gateway authorizes callers and charges completed streams; publisher
// receives a usage event per charge and may be nil.
func New(config Config, gateway *quota.Gateway, publisher eventstream.Publisher, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if gateway == nil {
		return nil, errors.New("quota gateway is required")
	}

	wp, err := worker.NewPool(&worker.Config{
		Charger:    gateway,
		Publisher:  publisher,
		NumWorkers: config.Workers,
		QueueSize:  config.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		gateway:       gateway,
		workerPool:    wp,
		logger:        logger,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// Streams can run long; the timeout covers the whole body.
			Timeout: config.timeout(),
		},
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
		ErrorHandler:      p.handleError,
	})

	app.Use(recover.New())
	// The chat stream stays uncompressed so a mid-stream decode failure
	// reaches the client as a truncated body, not a well-formed gzip trailer.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool { return c.Path() == ChatStreamPath },
	}))

	app.Get("/ping", func(c *fiber.Ctx) error { return c.JSON("pong") })
	app.All(ChatStreamPath, p.handleChatStream)
	app.All(PassthroughPath, p.handlePassthrough)
	app.Get(UsagePath, p.handleUsage)

	p.server = app
	return p, nil
}

// Run starts the relay on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting relay server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the relay using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the relay, waits for in-flight streams to
// finish and then for the worker pool to drain.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.streams.Wait()
	p.workerPool.Close()
	return err
}

// handleError turns handler errors and recovered panics into the fenced
// error payload, so no fault reaches the client as a bare transport error.
func (p *Proxy) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code == fiber.StatusNotFound {
		return c.Status(fe.Code).SendString(fe.Message)
	}

	p.logger.Error("relay request failed",
		"path", c.Path(),
		"error", err,
	)

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(fencedError(err))
}

// authorize checks the caller's access token. On denial it writes the
// uniform denial payload and returns false.
func (p *Proxy) authorize(c *fiber.Ctx) (string, bool) {
	token := strings.TrimSpace(c.Get(header.AccessTokenHeader))
	if err := p.gateway.Authorize(c.Context(), token); err != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		_ = c.Status(fiber.StatusUnauthorized).Send(quota.DenialPayload())
		return token, false
	}
	return token, true
}

// newUpstreamRequest builds the upstream request for path with the inbound
// method, body and filtered headers, authenticated with the server-held key.
func (p *Proxy) newUpstreamRequest(ctx context.Context, c *fiber.Ctx, path string) (*http.Request, error) {
	target := strings.TrimRight(p.config.UpstreamURL, "/") + "/" + strings.TrimLeft(path, "/")

	// fasthttp reuses the request buffer once the handler returns.
	body := bytes.Clone(c.Body())

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, req)
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
	return req, nil
}

// handleChatStream authorizes the caller, forwards the chat request and
// relays the decoded assistant text as it arrives.
func (p *Proxy) handleChatStream(c *fiber.Ctx) error {
	startTime := time.Now()
	requestID := uuid.NewString()

	token, ok := p.authorize(c)
	if !ok {
		return nil
	}
	fingerprint := eventstream.Fingerprint(token)

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming goroutine
	// keeps reading the upstream body after that.
	req, err := p.newUpstreamRequest(context.Background(), c, p.config.chatPath())
	if err != nil {
		return err
	}

	p.logger.Debug("forwarding chat request to upstream",
		"request_id", requestID,
		"token_fingerprint", fingerprint,
		"method", req.Method,
		"url", req.URL.String(),
	)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "stream") {
		defer resp.Body.Close()
		return p.relayNonStreaming(c, resp, requestID)
	}

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter: pw.Write
	// blocks until fasthttp's chunked body writer consumes the bytes and
	// flushes them to the socket, so each fragment reaches the client as
	// soon as it is decoded.
	pr, pw := io.Pipe()
	p.streams.Add(1)
	go func() {
		defer p.streams.Done()
		defer resp.Body.Close()

		job, completed := p.pumpFragments(resp.Body, pw, worker.Job{
			Token:     token,
			Path:      ChatStreamPath,
			StartedAt: startTime,
		})
		if !completed {
			return
		}

		p.logger.Debug("stream complete",
			"request_id", requestID,
			"token_fingerprint", fingerprint,
			"fragments", job.Fragments,
			"bytes", job.Bytes,
			"duration", time.Since(startTime),
		)
		p.workerPool.Enqueue(job)
	}()

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// relayNonStreaming returns an upstream body that is not an event stream,
// typically an error, as a single redacted and fenced payload.
func (p *Proxy) relayNonStreaming(c *fiber.Ctx, resp *http.Response, requestID string) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return fmt.Errorf("reading upstream response: %w", err)
	}

	content := Redact(string(raw))
	p.logger.Warn("upstream returned a non-streaming response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"body", utils.Truncate(content, maxLoggedBodyBytes),
	)

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(fencedBody(content))
}

// handlePassthrough forwards a non-streaming request to the upstream path
// named by the path header and returns the upstream response verbatim.
// Successful responses are charged like completed streams.
func (p *Proxy) handlePassthrough(c *fiber.Ctx) error {
	startTime := time.Now()

	token, ok := p.authorize(c)
	if !ok {
		return nil
	}

	path := strings.TrimSpace(c.Get(header.PathHeader))
	if path == "" {
		path = p.config.chatPath()
	}

	req, err := p.newUpstreamRequest(c.Context(), c, path)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading upstream response: %w", err)
	}

	p.headerHandler.SetClientResponseHeaders(c, resp)

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		p.workerPool.Enqueue(worker.Job{
			Token:       token,
			Path:        PassthroughPath,
			Bytes:       int64(len(body)),
			StartedAt:   startTime,
			CompletedAt: time.Now(),
		})
	}

	return c.Status(resp.StatusCode).Send(body)
}

// handleUsage reports the caller's remaining quota.
func (p *Proxy) handleUsage(c *fiber.Ctx) error {
	token := c.Get(header.AccessTokenHeader)

	remaining, err := p.gateway.Remaining(c.Context(), token)
	if err != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusUnauthorized).Send(quota.DenialPayload())
	}
	return c.JSON(quota.Success(remaining))
}
