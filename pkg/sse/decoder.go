package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	gosse "github.com/tmaxmax/go-sse"

	"github.com/streamrelay/streamrelay/pkg/llm"
)

// Decoder turns an upstream event stream into Fragments, one per event, in
// arrival order.
//
// ┌──────────────────┐   ┌──────────────┐   ┌──────────────────┐
// │ source io.Reader │──▶│ gosse.Read   │──▶│ Decoder.Next()   │──▶ Fragment
// └──────────────────┘   │ (framing)    │   │ (payload decode) │
//                        └──────────────┘   └──────────────────┘
//
// After the terminal sentinel or any error the decoder is finished and every
// further call to Next returns io.EOF.
type Decoder struct {
	next     func() (gosse.Event, error, bool)
	stop     func()
	finished bool
}

// NewDecoder returns a Decoder reading events from src.
func NewDecoder(src io.Reader) *Decoder {
	next, stop := iter.Pull2(gosse.Read(src, nil))
	return &Decoder{
		next: next,
		stop: stop,
	}
}

// Next blocks until the next complete event is available and decodes it.
//
// It returns a Fragment with Done set for the "[DONE]" sentinel, an error
// wrapping ErrDecode for malformed payloads, ErrUnexpectedEnd if the source
// ends first, or the underlying read error.
func (d *Decoder) Next() (Fragment, error) {
	if d.finished {
		return Fragment{}, io.EOF
	}

	ev, err := d.nextEvent()
	if err != nil {
		d.Close()
		return Fragment{}, err
	}

	if ev.Data == DoneSentinel {
		d.Close()
		return Fragment{Done: true}, nil
	}

	text, err := decodePayload(ev.Data)
	if err != nil {
		d.Close()
		return Fragment{}, err
	}

	return Fragment{Text: text}, nil
}

// nextEvent returns the next event that carries data. Events made only of
// comments, ids or retry fields are skipped.
func (d *Decoder) nextEvent() (gosse.Event, error) {
	for {
		ev, err, ok := d.next()
		if !ok {
			return gosse.Event{}, ErrUnexpectedEnd
		}
		if err != nil {
			return gosse.Event{}, fmt.Errorf("reading event stream: %w", err)
		}
		if ev.Data != "" {
			return ev, nil
		}
	}
}

// Close finishes the decoder and releases the underlying event iterator.
// It does not close the source reader.
func (d *Decoder) Close() {
	if d.finished {
		return
	}
	d.finished = true
	d.stop()
}

// decodePayload extracts choices[0].delta.content from a chunk payload.
func decodePayload(data string) (string, error) {
	var chunk llm.StreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if len(chunk.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in chunk", ErrDecode)
	}

	return chunk.Choices[0].Delta.Content, nil
}
