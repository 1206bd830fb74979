// Package rx bridges a store.Store to stream-style consumers.
//
// An Adapter exposes two things:
//
//   - State: a lazily built, cached, multicast stream of states that replays
//     the latest state to every new listener (replay-latest-of-1). It is
//     backed by a single store subscription, torn down by Stream.Close.
//   - Sink: a write-only consumer that dispatches every action put into it.
//
// Listen and Close touch the store and must run on the store's goroutine.
// Listener.Cancel and the channels returned by Watch are safe to use from
// any goroutine.
package rx
