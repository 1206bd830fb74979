package store

// Action describes something that happened. The tag returned by ActionType
// names the variant; the concrete value carries the payload.
//
// Actions are immutable values consumed once by the dispatch pipeline.
type Action interface {
	ActionType() string
}

// TypeOf returns the action's tag, or "" for a nil action.
func TypeOf(action Action) string {
	if action == nil {
		return ""
	}
	return action.ActionType()
}

// Next continues the middleware chain with the given action.
type Next func(action Action)

// API is the store handle handed to middleware and thunks.
type API[S any] interface {
	// State returns the current state.
	State() S

	// Dispatch sends an action through the full middleware chain.
	Dispatch(action Action)

	// DispatchThunk runs a thunk with the current state and this handle.
	DispatchThunk(thunk Thunk[S])

	// Version counts reducer applications since construction. Middleware
	// compares it around next to learn whether the reducer ran.
	Version() uint64

	// Depth is the number of dispatches currently on the stack.
	Depth() int
}

// Thunk is a deferred, state-aware unit of work dispatched in place of an
// action. It bypasses the middleware chain; every action it dispatches
// re-enters the chain from the top.
type Thunk[S any] func(state S, api API[S])

// Middleware intercepts a dispatch before it reaches the next stage.
//
// Calling next(action) continues the chain, possibly with a different action.
// Not calling next drops the action. Calling next more than once is not
// supported.
type Middleware[S any] func(api API[S], action Action, next Next)

// compose folds middleware right-to-left around terminal, so mws[0] runs
// first and terminal runs last.
func compose[S any](api API[S], mws []Middleware[S], terminal Next) Next {
	chain := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], chain
		chain = func(action Action) {
			mw(api, action, next)
		}
	}
	return chain
}
