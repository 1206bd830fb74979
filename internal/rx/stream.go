package rx

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/reflux/internal/store"
)

// Stream is a multicast, replay-latest view of a store's state.
type Stream[S any] struct {
	mu        sync.Mutex
	sub       *store.Subscription
	latest    S
	seq       uint64 // bumped on every publish
	listeners []*Listener[S]
	closed    bool
}

// newStream subscribes to st. The store replays its current state
// synchronously, which seeds latest.
func newStream[S any](st *store.Store[S]) *Stream[S] {
	s := &Stream[S]{}
	s.sub = st.SubscribeFunc(s.publish)
	return s
}

func (s *Stream[S]) publish(state S) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.latest = state
	s.seq++
	seq := s.seq
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.deliver(state, seq)
	}
}

// Latest returns the most recent state the stream has seen.
func (s *Stream[S]) Latest() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Listen calls fn with the latest state immediately, then with every later
// state until the listener is cancelled or the stream is closed.
// On a closed stream fn is never called and the listener is already
// cancelled.
//
// A state older than one the listener has already been handed is skipped.
// Callbacks themselves are not serialized: call Listen on the store's
// goroutine (runloop.Loop.Do) when fn must never overlap a publish.
func (s *Stream[S]) Listen(fn func(state S)) *Listener[S] {
	if fn == nil {
		return s.listen(nil, nil)
	}
	return s.listen(func(state S, _ uint64) { fn(state) }, nil)
}

func (s *Stream[S]) listen(fn func(state S, seq uint64), onCancel func()) *Listener[S] {
	l := &Listener[S]{stream: s, fn: fn, onCancel: onCancel}

	s.mu.Lock()
	if s.closed || fn == nil {
		s.mu.Unlock()
		l.Cancel()
		return l
	}
	s.listeners = append(s.listeners, l)
	latest, seq := s.latest, s.seq
	s.mu.Unlock()

	l.deliver(latest, seq)
	return l
}

// Watch returns a channel carrying the latest state and every later one.
//
// The channel holds one value; a slow reader skips intermediate states and
// always reads the newest one. It is closed once ctx is done or the stream
// is closed.
func (s *Stream[S]) Watch(ctx context.Context) <-chan S {
	w := &watcher[S]{ch: make(chan S, 1), done: make(chan struct{})}
	l := s.listen(w.offer, w.close)

	go func() {
		select {
		case <-ctx.Done():
			l.Cancel()
		case <-w.done:
		}
	}()
	return w.ch
}

// Len returns the number of active listeners.
func (s *Stream[S]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Closed reports whether the stream has been disposed.
func (s *Stream[S]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close disposes the stream: it removes the store subscription, cancels
// every listener and closes watch channels. Idempotent.
func (s *Stream[S]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	sub.Unsubscribe()
	for _, l := range listeners {
		l.Cancel()
	}
}

func (s *Stream[S]) remove(l *Listener[S]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = slices.DeleteFunc(s.listeners, func(x *Listener[S]) bool { return x == l })
}

// Listener is one attachment to a Stream.
type Listener[S any] struct {
	stream   *Stream[S]
	fn       func(state S, seq uint64)
	onCancel func()

	mu        sync.Mutex
	cancelled bool
	seen      uint64
}

// deliver hands state to fn unless the listener is cancelled or already got
// a newer state.
func (l *Listener[S]) deliver(state S, seq uint64) {
	l.mu.Lock()
	if l.cancelled || seq <= l.seen {
		l.mu.Unlock()
		return
	}
	l.seen = seq
	l.mu.Unlock()

	l.fn(state, seq)
}

// Cancel detaches the listener. Idempotent; safe from any goroutine.
func (l *Listener[S]) Cancel() {
	l.mu.Lock()
	if l.cancelled {
		l.mu.Unlock()
		return
	}
	l.cancelled = true
	l.mu.Unlock()

	l.stream.remove(l)
	if l.onCancel != nil {
		l.onCancel()
	}
}

// Active reports whether the listener still receives states.
func (l *Listener[S]) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.cancelled
}

// watcher adapts a Listener to a conflating channel.
type watcher[S any] struct {
	mu     sync.Mutex
	ch     chan S
	done   chan struct{}
	closed bool
	seq    uint64
}

// offer replaces any unread value with state. An offer older than the last
// one is dropped, so the channel never ends on a stale state.
func (w *watcher[S]) offer(state S, seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || seq < w.seq {
		return
	}
	w.seq = seq
	for {
		select {
		case w.ch <- state:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

func (w *watcher[S]) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
	close(w.done)
}
