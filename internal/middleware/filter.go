package middleware

import "github.com/roach88/reflux/internal/store"

// Filter drops every action for which allow returns false. A dropped action
// never reaches later middleware or the reducer, and no subscriber is
// notified.
func Filter[S any](allow func(action store.Action) bool) store.Middleware[S] {
	return func(api store.API[S], action store.Action, next store.Next) {
		if allow != nil && !allow(action) {
			return
		}
		next(action)
	}
}

// Drop is Filter for a fixed set of action types.
func Drop[S any](actionTypes ...string) store.Middleware[S] {
	blocked := make(map[string]struct{}, len(actionTypes))
	for _, t := range actionTypes {
		blocked[t] = struct{}{}
	}
	return Filter[S](func(action store.Action) bool {
		_, ok := blocked[store.TypeOf(action)]
		return !ok
	})
}

// Map replaces each action with fn(action) before passing it on. Returning
// nil drops the action.
func Map[S any](fn func(action store.Action) store.Action) store.Middleware[S] {
	return func(api store.API[S], action store.Action, next store.Next) {
		if fn != nil {
			action = fn(action)
		}
		if action == nil {
			return
		}
		next(action)
	}
}
