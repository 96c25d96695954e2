// Package registry provides the process-wide store of active browser
// sessions. Test bodies retrieve "the current session" from here instead of
// having a handle threaded through every layer.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidKey is returned when a keyed operation is invoked with an
	// empty key. This is a programmer error and is never retried.
	ErrInvalidKey = errors.New("registry: key must not be empty")

	// ErrNotFound is returned by Get when no session is stored under the key.
	ErrNotFound = errors.New("registry: session not found")
)

// Handle is an opaque reference to one live browser-automation session.
// The registry never owns a handle; closing it is the creator's job.
type Handle interface {
	ID() string
}

// Registry maps caller-chosen string keys to session handles and tracks a
// single unlabeled "current session" slot. All methods are safe for
// concurrent use; the registry owns its own synchronization.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Handle
	current  Handle
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]Handle)}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared process-wide registry. Exactly one instance
// exists per process; it lives until the process exits and is emptied only
// by explicit Clear/ClearCurrent calls.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// Put stores a handle under key, overwriting any previous entry. Duplicate
// keys are not an error.
func (r *Registry) Put(key string, h Handle) error {
	if key == "" {
		return ErrInvalidKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = h
	return nil
}

// Get returns the handle stored under key, or ErrNotFound.
func (r *Registry) Get(key string) (Handle, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return h, nil
}

// Remove deletes the entry for key. Removing an absent key is not an error.
func (r *Registry) Remove(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
	return nil
}

// Contains reports whether a handle is stored under key.
func (r *Registry) Contains(key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[key]
	return ok, nil
}

// Size returns the number of keyed entries.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns a copy of the keyed entries. Mutating the returned map does
// not affect the registry.
func (r *Registry) All() map[string]Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Handle, len(r.sessions))
	for k, v := range r.sessions {
		out[k] = v
	}
	return out
}

// SetCurrent marks h as the session the active test should use. Any
// previous current session is overwritten. The current slot is independent
// of the keyed map.
func (r *Registry) SetCurrent(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = h
}

// Current returns the current session, or false when none is set.
func (r *Registry) Current() (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, false
	}
	return r.current, true
}

// ClearCurrent empties the current-session slot.
func (r *Registry) ClearCurrent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}

// Clear empties the keyed map. The current-session slot is not affected.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]Handle)
}
