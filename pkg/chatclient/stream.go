package chatclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/streamrelay/streamrelay/pkg/controller"
	"github.com/streamrelay/streamrelay/pkg/llm"
)

const readBufferSize = 4096

// StreamOptions tune a single chat stream.
type StreamOptions struct {
	// FilterBot leaves assistant messages out of the request.
	FilterBot bool

	// ModelConfig overrides the client's default model config key by key.
	ModelConfig llm.ModelConfig
}

// Event is one step of a chat stream. Text is always the whole text
// accumulated so far, so each event's Text extends the previous one.
type Event struct {
	Text  string
	Final bool

	// Err is set on the terminal event of a failed stream. StatusCode is the
	// relay's status when the failure was an HTTP answer, 0 otherwise.
	Err        error
	StatusCode int
}

// Stream is an in-flight chat stream. The event channel is closed after the
// terminal event; callers must drain it.
type Stream struct {
	events chan Event
	handle *controller.Handle
}

// Events returns the stream's event channel.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Handle returns the cancellation handle of the stream. It is available as
// soon as ChatStream returns.
func (s *Stream) Handle() *controller.Handle {
	return s.handle
}

// Cancel aborts the stream. The stream then finalizes with the text
// received so far.
func (s *Stream) Cancel() {
	s.handle.Cancel()
}

// ChatStream starts a streaming chat request for messages and returns
// immediately. Cancelling ctx behaves like Cancel.
func (c *Client) ChatStream(ctx context.Context, messages []llm.ChatMessage, opts StreamOptions) *Stream {
	ctx, handle := controller.WithCancel(ctx)
	s := &Stream{
		events: make(chan Event, 16),
		handle: handle,
	}

	go c.runStream(ctx, s, messages, opts)
	return s
}

func (c *Client) runStream(ctx context.Context, s *Stream, messages []llm.ChatMessage, opts StreamOptions) {
	defer close(s.events)
	// A finished stream is left cancelled so the connection is released.
	defer s.handle.Cancel()

	startTime := time.Now()
	var text strings.Builder

	fail := func(err error, status int) {
		c.logger.Warn("chat stream failed",
			"status", status,
			"duration", time.Since(startTime),
			"error", err,
		)
		s.events <- Event{Text: text.String(), Err: err, StatusCode: status}
	}
	finish := func() {
		c.logger.Debug("chat stream finished",
			"bytes", text.Len(),
			"cancelled", ctx.Err() != nil,
			"duration", time.Since(startTime),
		)
		s.events <- Event{Text: text.String(), Final: true}
	}

	body, err := c.buildRequest(messages, opts, true)
	if err != nil {
		fail(err, 0)
		return
	}
	req, err := c.newRequest(ctx, http.MethodPost, ChatStreamPath, body)
	if err != nil {
		fail(err, 0)
		return
	}

	connectTimer := time.AfterFunc(c.connectTimeout, s.handle.Cancel)
	resp, err := c.httpClient.Do(req)
	connectTimer.Stop()
	if err != nil {
		if ctx.Err() != nil {
			finish()
			return
		}
		fail(fmt.Errorf("requesting chat stream: %w", err), 0)
		return
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, ErrStream); err != nil {
		fail(err, resp.StatusCode)
		return
	}

	var dec utf8Carry
	buf := make([]byte, readBufferSize)
	for {
		readTimer := time.AfterFunc(c.readTimeout, s.handle.Cancel)
		n, readErr := resp.Body.Read(buf)
		readTimer.Stop()

		if n > 0 {
			if chunk := dec.decode(buf[:n]); chunk != "" {
				text.WriteString(chunk)
				s.progress(ctx, text.String())
			}
		}

		switch {
		case readErr == nil:
			continue
		case errors.Is(readErr, io.EOF):
			text.WriteString(dec.flush())
			finish()
			return
		case ctx.Err() != nil:
			finish()
			return
		default:
			fail(fmt.Errorf("reading chat stream: %w", readErr), 0)
			return
		}
	}
}

// progress emits a non-final event. Once the stream is cancelled progress
// events are dropped; the final event still carries the full text.
func (s *Stream) progress(ctx context.Context, text string) {
	select {
	case s.events <- Event{Text: text}:
	case <-ctx.Done():
	}
}
