// Package router implements the thread-safe (Stream, Function) -> Handler
// dispatch table used by the unified protocol session (spec.md §4.6).
package router

import "sync"

// Key identifies a primary message type by its Stream and Function codes.
type Key struct {
	Stream   uint8
	Function uint8
}

// Handler processes an inbound primary message body and returns the body
// of the secondary reply (ignored for one-way primaries) and an error. A
// handler error suppresses auto-reply but does not tear down the session
// (spec.md §4.6, §7).
type Handler func(body []byte) ([]byte, error)

// Router is a thread-safe (Stream, Function) -> Handler map with an
// optional default fallback, consulted by the protocol session's inbound
// dispatch.
type Router struct {
	mu       sync.Mutex
	handlers map[Key]Handler
	fallback Handler
}

// New creates an empty Router.
func New() *Router {
	return &Router{handlers: make(map[Key]Handler)}
}

// Set registers handler for (stream, function), replacing any existing
// registration.
func (r *Router) Set(stream, function uint8, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[Key{stream, function}] = handler
}

// Erase removes the handler registered for (stream, function), if any.
func (r *Router) Erase(stream, function uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, Key{stream, function})
}

// Clear removes every registered handler, including the default.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[Key]Handler)
	r.fallback = nil
}

// SetDefault registers the fallback handler invoked when no specific
// (stream, function) handler exists. A nil handler clears the fallback.
func (r *Router) SetDefault(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

// Find returns the handler for (stream, function), falling back to the
// default handler if no specific one is registered. ok is false if
// neither exists.
func (r *Router) Find(stream, function uint8) (handler Handler, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, exists := r.handlers[Key{stream, function}]; exists {
		return h, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}
