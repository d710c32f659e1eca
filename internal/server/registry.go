// Package server coordinates connection registration, message relay, and
// connection cleanup for the chatrelay WebSocket system.
package server

import "sync"

// Session is a live connection as seen by the registry and the relay: a
// destination that messages can be offered to without blocking.
type Session interface {
	// TrySend offers a payload to the session's outbound queue. It returns
	// false if the session is closing or its queue is full; the caller
	// treats that as "recipient effectively offline" and drops the payload.
	TrySend(payload []byte) bool
}

// Registry tracks which users are currently reachable for live delivery.
// It is the only mutable state shared between connections; every method is
// atomic with respect to the others.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry creates an empty registry. Each server instance (and each
// test) owns its own; there is no package-level instance.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Register inserts or overwrites the session for userID. A previous session
// for the same user is dereferenced, not closed: the replaced connection
// keeps running until its own transport fails (last-connect-wins).
func (r *Registry) Register(userID string, session Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = session
}

// Unregister removes the mapping for userID. Removing an absent user is a
// no-op, which makes double-disconnect harmless.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Release removes the mapping for userID only if it still points at session.
// Connection teardown uses this instead of Unregister so that a stale
// connection dying after a reconnect cannot evict its replacement.
func (r *Registry) Release(userID string, session Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[userID]; ok && current == session {
		delete(r.sessions, userID)
	}
}

// Lookup returns the current session for userID, if any.
func (r *Registry) Lookup(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[userID]
	return session, ok
}

// Len reports how many users are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
