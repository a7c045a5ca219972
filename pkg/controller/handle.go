// Package controller tracks cancellation handles for in-flight chat streams.
//
// A Registry maps a (session index, message index) slot to the Handle of the
// generation currently streaming into that slot, so a user can abort one
// message without touching any other.
package controller

import (
	"context"
	"sync"
)

// Handle is a single-use cancellation capability. The wrapped cancel
// function runs at most once no matter how often Cancel is called.
type Handle struct {
	once   sync.Once
	cancel func()
	done   chan struct{}
}

// NewHandle wraps cancel in a Handle.
func NewHandle(cancel func()) *Handle {
	return &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// WithCancel returns a child context of parent together with a Handle that
// cancels it.
func WithCancel(parent context.Context) (context.Context, *Handle) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, NewHandle(cancel)
}

// Cancel invokes the underlying cancel function the first time it is called.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
		close(h.done)
	})
}

// Done is closed once Cancel has run.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancelled reports whether Cancel has run.
func (h *Handle) Cancelled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
