package chatclient

import (
	"context"

	"github.com/streamrelay/streamrelay/pkg/controller"
	"github.com/streamrelay/streamrelay/pkg/llm"
)

// Callbacks receive the events of RequestChatStream. Any of them may be nil.
type Callbacks struct {
	// OnMessage is called with the accumulated text; final is true exactly
	// once, on the last call.
	OnMessage func(text string, final bool)

	// OnError is called instead of the final OnMessage when the stream fails.
	// statusCode is 0 for transport failures.
	OnError func(err error, statusCode int)

	// OnController receives the stream's cancellation handle before any
	// other callback.
	OnController func(handle *controller.Handle)
}

// RequestChatStream runs a chat stream to completion, delivering its events
// to cb. It returns after the terminal callback.
func (c *Client) RequestChatStream(ctx context.Context, messages []llm.ChatMessage, opts StreamOptions, cb Callbacks) {
	s := c.ChatStream(ctx, messages, opts)
	if cb.OnController != nil {
		cb.OnController(s.Handle())
	}

	for ev := range s.Events() {
		switch {
		case ev.Err != nil:
			if cb.OnError != nil {
				cb.OnError(ev.Err, ev.StatusCode)
			}
		case cb.OnMessage != nil:
			cb.OnMessage(ev.Text, ev.Final)
		}
	}
}
