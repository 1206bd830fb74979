package store

import (
	"slices"
	"unsafe"
	"weak"
)

// Subscriber receives the current state on subscribe and after every
// reducer application.
type Subscriber[S any] interface {
	NewState(state S)
}

// Subscription is the token returned by Subscribe and SubscribeFunc.
//
// It holds the store weakly: a token never keeps its store alive, and
// Unsubscribe after the store is gone is a no-op.
type Subscription struct {
	cancel func()
	done   bool
}

// Unsubscribe removes the subscription. Idempotent; safe on a nil token and
// from inside a notification.
func (sub *Subscription) Unsubscribe() {
	if sub == nil || sub.done {
		return
	}
	sub.done = true
	if sub.cancel != nil {
		sub.cancel()
	}
}

// Active reports whether the subscription is still registered.
func (sub *Subscription) Active() bool {
	return sub != nil && !sub.done
}

// entry is one registered subscription.
//
// key is a weak.Pointer[T] for Subscribe and the *Subscription itself for
// SubscribeFunc. notify returns false once the subscriber has been collected.
type entry[S any] struct {
	key     any
	notify  func(state S) bool
	alive   func() bool
	token   *Subscription
	removed bool
}

// registry keeps subscriptions in insertion order.
type registry[S any] struct {
	entries []*entry[S]
}

func (r *registry[S]) find(key any) *entry[S] {
	for _, e := range r.entries {
		if e.key == key {
			return e
		}
	}
	return nil
}

func (r *registry[S]) add(e *entry[S]) {
	r.entries = append(r.entries, e)
}

// drop removes e and flags it so an in-flight notification pass skips it.
func (r *registry[S]) drop(e *entry[S]) {
	e.removed = true
	if e.token != nil {
		e.token.done = true
	}
	r.entries = slices.DeleteFunc(r.entries, func(x *entry[S]) bool { return x == e })
}

func (r *registry[S]) remove(key any) bool {
	e := r.find(key)
	if e == nil {
		return false
	}
	r.drop(e)
	return true
}

func (r *registry[S]) prune() {
	r.entries = slices.DeleteFunc(r.entries, func(e *entry[S]) bool {
		if e.alive() {
			return false
		}
		e.removed = true
		if e.token != nil {
			e.token.done = true
		}
		return true
	})
}

// snapshot copies the entry list so subscribers may subscribe or unsubscribe
// while a pass iterates it.
func (r *registry[S]) snapshot() []*entry[S] {
	return slices.Clone(r.entries)
}

// Subscribe registers sub with s, holding it through a weak pointer, and
// immediately calls sub.NewState with the current state.
//
// Identity is pointer identity: two distinct subscribers with identical
// behavior are separate subscriptions. Subscribing an already-registered
// subscriber keeps its original position, replays the current state and
// returns the existing token.
//
// Once sub becomes unreachable it is pruned on the next notification pass.
// A nil sub is ignored and yields a nil token.
//
// Pointers to zero-size types may all share one address, so they carry no
// identity. Each Subscribe of such a subscriber creates a separate,
// strongly held subscription that only its token can remove.
func Subscribe[S any, T any, P interface {
	*T
	Subscriber[S]
}](s *Store[S], sub P) *Subscription {
	if sub == nil {
		return nil
	}
	if zeroSize[T]() {
		return s.subscribeToken(sub.NewState)
	}
	wp := weak.Make((*T)(sub))

	if e := s.subs.find(wp); e != nil {
		sub.NewState(s.state)
		return e.token
	}

	token := s.newToken(wp)
	s.subs.add(&entry[S]{
		key: wp,
		notify: func(state S) bool {
			p := wp.Value()
			if p == nil {
				return false
			}
			P(p).NewState(state)
			return true
		},
		alive: func() bool { return wp.Value() != nil },
		token: token,
	})

	sub.NewState(s.state)
	return token
}

// Unsubscribe removes the subscription registered for sub. A no-op when sub
// was never subscribed or has already been removed, and for zero-size
// subscriber types (use the token returned by Subscribe instead).
func Unsubscribe[S any, T any, P interface {
	*T
	Subscriber[S]
}](s *Store[S], sub P) {
	if sub == nil || zeroSize[T]() {
		return
	}
	s.subs.remove(weak.Make((*T)(sub)))
}

// SubscribeFunc registers fn and immediately calls it with the current state.
//
// Unlike Subscribe the store holds fn strongly; the returned token is its
// identity and the only way to remove it.
func (s *Store[S]) SubscribeFunc(fn func(state S)) *Subscription {
	if fn == nil {
		return nil
	}
	return s.subscribeToken(fn)
}

// subscribeToken registers fn keyed by its own token and replays the
// current state.
func (s *Store[S]) subscribeToken(fn func(state S)) *Subscription {
	token := &Subscription{}
	token.cancel = s.cancelFunc(token)
	s.subs.add(&entry[S]{
		key: token,
		notify: func(state S) bool {
			fn(state)
			return true
		},
		alive: func() bool { return true },
		token: token,
	})

	fn(s.state)
	return token
}

func zeroSize[T any]() bool {
	var zero T
	return unsafe.Sizeof(zero) == 0
}

func (s *Store[S]) newToken(key any) *Subscription {
	return &Subscription{cancel: s.cancelFunc(key)}
}

// cancelFunc removes key from the store if the store is still reachable.
func (s *Store[S]) cancelFunc(key any) func() {
	self := s.self
	return func() {
		if st := self.Value(); st != nil {
			st.subs.remove(key)
		}
	}
}
