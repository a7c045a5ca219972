package controller

import (
	"fmt"
	"sync"
)

// Key identifies a message slot. Distinct (session, message) pairs always
// produce distinct keys.
type Key struct {
	Session int
	Message int
}

func (k Key) String() string {
	return fmt.Sprintf("%d,%d", k.Session, k.Message)
}

// Registry maps message slots to the Handle of their in-flight stream.
// Construct one per process with NewRegistry and pass it to whatever needs to
// register or abort generations.
type Registry struct {
	// mu guards handles. No method blocks while holding it.
	mu      sync.Mutex
	handles map[Key]*Handle
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[Key]*Handle),
	}
}

// Register stores h for the slot, replacing any previous handle without
// cancelling it. The returned key identifies the slot.
func (r *Registry) Register(session, message int, h *Handle) Key {
	key := Key{Session: session, Message: message}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handles[key] = h
	return key
}

// Cancel aborts the stream registered for the slot. A missing slot is a
// no-op. The entry stays registered until Release.
func (r *Registry) Cancel(session, message int) {
	r.mu.Lock()
	h, ok := r.handles[Key{Session: session, Message: message}]
	r.mu.Unlock()

	if ok && h != nil {
		h.Cancel()
	}
}

// Release removes the slot, whether its stream finished or was cancelled.
func (r *Registry) Release(session, message int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handles, Key{Session: session, Message: message})
}

// Lookup returns the handle registered for the slot, if any.
func (r *Registry) Lookup(session, message int) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[Key{Session: session, Message: message}]
	return h, ok
}

// Len returns the number of registered slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}
