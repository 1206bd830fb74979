package testutil

import (
	"sync"

	"github.com/roach88/reflux/internal/store"
)

// CallLog collects entries written by Spy middleware and reducers under test.
type CallLog struct {
	mu      sync.Mutex
	entries []string
}

// Add appends an entry.
func (l *CallLog) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the log.
func (l *CallLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Spy returns a middleware that logs name, then continues the chain.
func Spy[S any](log *CallLog, name string) store.Middleware[S] {
	return func(api store.API[S], action store.Action, next store.Next) {
		log.Add(name)
		next(action)
	}
}

// Block returns a middleware that logs name and never calls next.
func Block[S any](log *CallLog, name string) store.Middleware[S] {
	return func(api store.API[S], action store.Action, next store.Next) {
		log.Add(name)
	}
}
