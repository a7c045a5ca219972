// Package sse decodes an upstream chat completion event stream into text
// fragments.
//
// The upstream frames every event as one or more "data:" lines followed by a
// blank line. Each payload is a JSON chunk whose choices[0].delta.content is
// the next piece of assistant text, and the literal payload "[DONE]"
// terminates the stream:
//
//	data: {"choices":[{"delta":{"content":"Hel"}}]}
//
//	data: {"choices":[{"delta":{"content":"lo"}}]}
//
//	data: [DONE]
//
// Framing (including events split across transport reads) is handled by
// github.com/tmaxmax/go-sse; this package adds the payload semantics.
package sse

import "errors"

// DoneSentinel is the payload that marks the end of the upstream stream.
const DoneSentinel = "[DONE]"

var (
	// ErrDecode is returned for a payload that is not a chat completion chunk.
	// A decode error is fatal to the stream.
	ErrDecode = errors.New("malformed stream payload")

	// ErrUnexpectedEnd is returned when the source is exhausted before the
	// terminal sentinel arrived.
	ErrUnexpectedEnd = errors.New("event stream ended before [DONE]")
)

// Fragment is one decoded unit of the upstream stream: either a piece of
// assistant text or the terminal signal.
type Fragment struct {
	// Text is the incremental delta content. It may be empty for chunks that
	// only carry a role or a finish reason.
	Text string

	// Done is set for the terminal sentinel. Text is always empty then.
	Done bool
}
