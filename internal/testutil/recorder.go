package testutil

import "sync"

// StateRecorder is a store.Subscriber that keeps every state it is shown,
// replay included.
//
// Thread-safety: safe for concurrent use, so tests may read it while a
// runloop goroutine notifies it.
type StateRecorder[S any] struct {
	mu     sync.Mutex
	states []S
}

// NewStateRecorder creates an empty recorder.
func NewStateRecorder[S any]() *StateRecorder[S] {
	return &StateRecorder[S]{states: make([]S, 0, 8)}
}

// NewState implements store.Subscriber.
func (r *StateRecorder[S]) NewState(state S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

// States returns a copy of every recorded state in order.
func (r *StateRecorder[S]) States() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]S, len(r.states))
	copy(out, r.states)
	return out
}

// Last returns the most recent state, if any.
func (r *StateRecorder[S]) Last() (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		var zero S
		return zero, false
	}
	return r.states[len(r.states)-1], true
}

// Len returns the number of notifications received.
func (r *StateRecorder[S]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Reset forgets everything recorded so far.
func (r *StateRecorder[S]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = r.states[:0]
}
