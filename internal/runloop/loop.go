// Package runloop serializes access to a store.Store onto one goroutine.
//
// A Store is single-threaded. Loop turns it into an actor: any goroutine may
// Enqueue actions, thunks or arbitrary work, and Run applies them one at a
// time in FIFO order, so each dispatch-to-notify sequence is one atomic step
// and two concurrent dispatches never interleave.
//
// Thread-safety model:
//   - Enqueue, EnqueueThunk, Dispatch, Do, State, Stop, Len: any goroutine
//   - Run: exactly one goroutine
package runloop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reflux/internal/store"
)

// Loop is the single-writer event loop around a store.
type Loop[S any] struct {
	store  *store.Store[S]
	queue  *taskQueue
	logger *slog.Logger
}

// Option configures a Loop.
type Option[S any] func(*Loop[S])

// WithLogger sets the loop's logger.
// Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(l *Loop[S]) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loop that owns st. After Run starts, st must only be touched
// from tasks running on the loop.
func New[S any](st *store.Store[S], opts ...Option[S]) *Loop[S] {
	l := &Loop[S]{
		store:  st,
		queue:  newTaskQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enqueue schedules action for dispatch. Returns false once the loop is
// stopped.
func (l *Loop[S]) Enqueue(action store.Action) bool {
	if action == nil {
		return false
	}
	return l.queue.Enqueue(task{
		name: action.ActionType(),
		run:  func() { l.store.Dispatch(action) },
	})
}

// EnqueueThunk schedules a thunk. Returns false once the loop is stopped.
func (l *Loop[S]) EnqueueThunk(thunk store.Thunk[S]) bool {
	if thunk == nil {
		return false
	}
	return l.queue.Enqueue(task{
		name: "thunk",
		run:  func() { l.store.DispatchThunk(thunk) },
	})
}

// Dispatch schedules action and drops it silently if the loop is stopped.
// It lets a Loop stand in wherever a Dispatcher is accepted.
func (l *Loop[S]) Dispatch(action store.Action) {
	if !l.Enqueue(action) {
		l.logger.Debug("dropping action: loop stopped", "action", store.TypeOf(action))
	}
}

// Do schedules fn to run on the loop goroutine with the store, e.g. to
// subscribe or to read state consistently.
func (l *Loop[S]) Do(fn func(st *store.Store[S])) bool {
	if fn == nil {
		return false
	}
	return l.queue.Enqueue(task{
		name: "do",
		run:  func() { fn(l.store) },
	})
}

// State returns the store's state as seen from the loop goroutine, after
// every task enqueued before the call has run.
func (l *Loop[S]) State(ctx context.Context) (S, error) {
	var zero S
	result := make(chan S, 1)
	if !l.Do(func(st *store.Store[S]) { result <- st.State() }) {
		return zero, fmt.Errorf("loop stopped")
	}
	select {
	case s := <-result:
		return s, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Run processes tasks until ctx is cancelled or Stop is called and the
// queue has drained.
//
// A panicking task (a reducer bug, or a store.DispatchError) is logged and
// the loop continues with the next task.
func (l *Loop[S]) Run(ctx context.Context) error {
	l.logger.Debug("runloop starting")

	for {
		if t, ok := l.queue.TryDequeue(); ok {
			l.runTask(t)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("runloop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel is closed once the queue is closed, so this
			// case keeps firing until the backlog is drained.
			if l.queue.Closed() && l.queue.Len() == 0 {
				l.logger.Debug("runloop stopping: queue closed")
				return nil
			}
		}
	}
}

func (l *Loop[S]) runTask(t task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("runloop task panicked",
				"task", t.name,
				"panic", r)
		}
	}()
	t.run()
}

// Stop closes the queue. Run drains what is already queued and returns nil.
func (l *Loop[S]) Stop() {
	l.queue.Close()
}

// Len returns the number of queued tasks.
func (l *Loop[S]) Len() int {
	return l.queue.Len()
}
