package store

import (
	"log/slog"
	"weak"
)

// DefaultMaxDepth is the default limit on nested dispatches.
// It stops subscriber/dispatch feedback loops from overflowing the stack.
const DefaultMaxDepth = 64

// Store owns the current state, the reducer and the composed middleware chain.
//
// The reducer and middleware list are fixed at construction. Subscribers are
// held weakly (see Subscribe).
//
// Thread-safety: not safe for concurrent use. See runloop.Loop.
type Store[S any] struct {
	state      S
	reducer    Reducer[S]
	middleware []Middleware[S]
	chain      Next

	subs     registry[S]
	self     weak.Pointer[Store[S]]
	logger   *slog.Logger
	maxDepth int

	version  uint64
	depth    int
	reducing bool
}

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithMiddleware appends middleware to the chain, in order.
func WithMiddleware[S any](mws ...Middleware[S]) Option[S] {
	return func(s *Store[S]) {
		for _, mw := range mws {
			if mw != nil {
				s.middleware = append(s.middleware, mw)
			}
		}
	}
}

// WithLogger sets the logger for store diagnostics.
// Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(s *Store[S]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxDepth sets the maximum number of nested dispatches.
//
// Default: 64 (DefaultMaxDepth). Values below 1 are ignored.
func WithMaxDepth[S any](n int) Option[S] {
	return func(s *Store[S]) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// New creates a store with the given initial state and reducer.
//
// A nil reducer leaves state unchanged for every action. The middleware list
// is copied from the options and composed once.
func New[S any](initial S, reducer Reducer[S], opts ...Option[S]) *Store[S] {
	if reducer == nil {
		reducer = func(state S, _ Action) S { return state }
	}

	s := &Store[S]{
		state:    initial,
		reducer:  reducer,
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.self = weak.Make(s)
	s.chain = compose[S](s, s.middleware, s.reduce)
	return s
}

// State returns the current state.
func (s *Store[S]) State() S {
	return s.state
}

// Version counts reducer applications since construction.
func (s *Store[S]) Version() uint64 {
	return s.version
}

// Depth returns the number of dispatches and thunks currently running.
func (s *Store[S]) Depth() int {
	return s.depth
}

// Dispatch sends action through the middleware chain to the reducer.
//
// Runs to completion, including every subscriber notification, before
// returning. A nil action is ignored.
//
// Panics with a *DispatchError when called from inside a reducer or when the
// nesting depth exceeds the max depth. Panics raised by the reducer or by
// middleware propagate to the caller.
func (s *Store[S]) Dispatch(action Action) {
	if action == nil {
		s.logger.Debug("ignoring nil action")
		return
	}
	s.enter(action.ActionType())
	defer s.leave()

	s.chain(action)
}

// DispatchThunk runs thunk synchronously with the current state and the
// store handle. The thunk itself is not seen by middleware; each action it
// dispatches goes through the full chain. A nil thunk is ignored.
func (s *Store[S]) DispatchThunk(thunk Thunk[S]) {
	if thunk == nil {
		return
	}
	s.enter("")
	defer s.leave()

	thunk(s.state, s)
}

func (s *Store[S]) enter(actionType string) {
	if s.reducing {
		panic(newReducerDispatchError(actionType, s.depth))
	}
	if s.depth >= s.maxDepth {
		panic(newDepthError(actionType, s.depth, s.maxDepth))
	}
	s.depth++
}

func (s *Store[S]) leave() {
	s.depth--
}

// reduce is the terminal step of the chain.
func (s *Store[S]) reduce(action Action) {
	next := s.apply(action)
	s.state = next
	s.version++
	s.publish(s.version)
}

func (s *Store[S]) apply(action Action) S {
	s.reducing = true
	defer func() { s.reducing = false }()
	return s.reducer(s.state, action)
}

// publish notifies a snapshot of the subscriber list. The pass stops early
// once a nested dispatch has published a newer version.
func (s *Store[S]) publish(version uint64) {
	dead := 0
	for _, e := range s.subs.snapshot() {
		if s.version != version {
			s.logger.Debug("notification pass superseded",
				"version", version,
				"latest", s.version)
			break
		}
		if e.removed {
			continue
		}
		if !e.notify(s.state) {
			s.subs.drop(e)
			dead++
		}
	}
	if dead > 0 {
		s.logger.Debug("pruned collected subscribers", "count", dead)
	}
}

// Len returns the number of live subscriptions, pruning collected ones first.
func (s *Store[S]) Len() int {
	s.subs.prune()
	return len(s.subs.entries)
}
