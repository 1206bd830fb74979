package rx

import (
	"context"
	"fmt"

	"github.com/roach88/reflux/internal/store"
)

// Adapter exposes a store as a state stream and an action sink.
type Adapter[S any] struct {
	store  *store.Store[S]
	stream *Stream[S]
}

// NewAdapter wraps st. Nothing subscribes to the store until State is
// first called.
func NewAdapter[S any](st *store.Store[S]) *Adapter[S] {
	return &Adapter[S]{store: st}
}

// State returns the cached state stream, building it on first use or after
// the previous one was closed.
func (a *Adapter[S]) State() *Stream[S] {
	if a.stream == nil || a.stream.Closed() {
		a.stream = newStream(a.store)
	}
	return a.stream
}

// Sink returns a sink dispatching into the store.
func (a *Adapter[S]) Sink() *Sink {
	return NewSink(a.store)
}

// Close disposes the current stream, if any.
func (a *Adapter[S]) Close() {
	if a.stream != nil {
		a.stream.Close()
		a.stream = nil
	}
}

// Dispatcher is anything that accepts actions: a *store.Store or a
// *runloop.Loop.
type Dispatcher interface {
	Dispatch(action store.Action)
}

// Sink is a write-only consumer of actions.
type Sink struct {
	target Dispatcher
}

// NewSink creates a sink that forwards to d.
func NewSink(d Dispatcher) *Sink {
	return &Sink{target: d}
}

// Put dispatches action. Nil actions are ignored.
func (s *Sink) Put(action store.Action) {
	if action == nil {
		return
	}
	s.target.Dispatch(action)
}

// Drain puts every action received on actions until the channel is closed
// (returns nil) or ctx is done (returns ctx.Err()).
func (s *Sink) Drain(ctx context.Context, actions <-chan store.Action) error {
	if actions == nil {
		return fmt.Errorf("drain: nil action channel")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action, ok := <-actions:
			if !ok {
				return nil
			}
			s.Put(action)
		}
	}
}
