package store

import "maps"

// Reducer computes the next state from the current state and an action.
//
// Reducers must be pure and total: no side effects, no dispatch, and an
// unrecognized action returns the incoming state unchanged.
type Reducer[S any] func(state S, action Action) S

// Combine returns a reducer that applies each reducer in order, feeding the
// output of one into the next. Nil reducers are skipped.
func Combine[S any](reducers ...Reducer[S]) Reducer[S] {
	rs := make([]Reducer[S], 0, len(reducers))
	for _, r := range reducers {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return func(state S, action Action) S {
		for _, r := range rs {
			state = r(state, action)
		}
		return state
	}
}

// Handlers maps action tags to the function that handles them.
type Handlers[S any] map[string]func(state S, action Action) S

// Reducer builds a reducer that dispatches on the action tag and returns the
// state unchanged for tags it has no handler for. The map is copied, so later
// edits to h do not affect the returned reducer.
func (h Handlers[S]) Reducer() Reducer[S] {
	table := maps.Clone(h)
	return func(state S, action Action) S {
		if action == nil {
			return state
		}
		fn, ok := table[action.ActionType()]
		if !ok || fn == nil {
			return state
		}
		return fn(state, action)
	}
}
