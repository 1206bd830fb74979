// Package store implements the unidirectional dispatch pipeline: a Store that
// owns one immutable state value, a pure Reducer, and an ordered Middleware
// chain every action passes through before it reaches the reducer.
//
// DISPATCH:
//
// The chain is composed once at construction by folding the middleware list
// right-to-left, so middleware[0] is the outermost wrapper:
//
//	middleware[0] → middleware[1] → … → middleware[n-1] → reducer
//
// The terminal step applies the reducer, assigns the result and notifies every
// live subscriber in subscription order before Dispatch returns. A middleware
// that never calls next suppresses the reducer and all notifications.
//
// SUBSCRIBERS:
//
// Subscribe holds subscribers through weak pointers. A subscriber that becomes
// unreachable is pruned on the next notification pass; the store is never the
// reason a subscriber stays alive. Subscription tokens hold the store weakly,
// so a token never keeps the store alive either.
//
// RE-ENTRANCY:
//
// Middleware, thunks and subscribers may dispatch. A nested dispatch runs to
// completion before control returns to the caller (depth-first). When a nested
// dispatch publishes a newer state in the middle of a notification pass, the
// outer pass stops, so the last state any subscriber observes is the latest
// one (last-write-wins). Dispatching from inside a reducer panics with a
// DispatchError; so does nesting deeper than the configured max depth.
//
// Thread-safety: a Store is NOT safe for concurrent use. Serialize access with
// runloop.Loop when dispatching from several goroutines.
package store
