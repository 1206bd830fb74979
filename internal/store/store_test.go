package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Count int
}

type increase struct{}

func (increase) ActionType() string { return "increase" }

type decrease struct{}

func (decrease) ActionType() string { return "decrease" }

type setCount struct{ Count int }

func (setCount) ActionType() string { return "set_count" }

type unrelated struct{}

func (unrelated) ActionType() string { return "unrelated" }

func gain() Reducer[counter] {
	return Handlers[counter]{
		"increase": func(s counter, _ Action) counter { return counter{Count: s.Count + 1} },
		"decrease": func(s counter, _ Action) counter { return counter{Count: s.Count - 1} },
	}.Reducer()
}

// recorder is a Subscriber that remembers every count it was shown.
type recorder struct {
	seen []int
}

func (r *recorder) NewState(s counter) {
	r.seen = append(r.seen, s.Count)
}

// capturePanic runs fn and returns the recovered panic value, if any.
func capturePanic(fn func()) (v any) {
	defer func() { v = recover() }()
	fn()
	return nil
}

func TestNew_InitialState(t *testing.T) {
	st := New(counter{Count: 3}, gain())

	assert.Equal(t, counter{Count: 3}, st.State())
	assert.Equal(t, uint64(0), st.Version())
	assert.Equal(t, 0, st.Depth())
	assert.Equal(t, 0, st.Len())
}

func TestNew_NilReducerIsIdentity(t *testing.T) {
	st := New[counter](counter{Count: 1}, nil)

	st.Dispatch(increase{})

	assert.Equal(t, counter{Count: 1}, st.State())
	assert.Equal(t, uint64(1), st.Version(), "the identity reducer still ran")
}

func TestReducer_Purity(t *testing.T) {
	r := gain()
	in := counter{Count: 7}

	first := r(in, increase{})
	second := r(in, increase{})

	assert.Equal(t, first, second)
	assert.Equal(t, counter{Count: 7}, in, "input state must be untouched")
}

func TestDispatch_UnknownActionIsNoOp(t *testing.T) {
	st := New(counter{Count: 4}, gain())
	before := st.State()

	st.Dispatch(unrelated{})

	assert.Equal(t, before, st.State())
}

func TestDispatch_NilActionIgnored(t *testing.T) {
	rec := &recorder{}
	st := New(counter{}, gain())
	Subscribe(st, rec)

	st.Dispatch(nil)

	assert.Equal(t, []int{0}, rec.seen)
	assert.Equal(t, uint64(0), st.Version())
}

func TestMiddleware_Ordering(t *testing.T) {
	var log []string
	reducerCalls := 0

	named := func(name string) Middleware[counter] {
		return func(api API[counter], action Action, next Next) {
			log = append(log, name)
			next(action)
		}
	}
	reducer := func(s counter, a Action) counter {
		log = append(log, "reducer")
		reducerCalls++
		return gain()(s, a)
	}

	st := New(counter{}, reducer, WithMiddleware(named("A"), named("B")))
	st.Dispatch(increase{})

	assert.Equal(t, []string{"A", "B", "reducer"}, log)
	assert.Equal(t, 1, reducerCalls)
	assert.Equal(t, counter{Count: 1}, st.State())
}

func TestMiddleware_SeesStateAroundNext(t *testing.T) {
	var before, after int
	var applied bool

	mw := func(api API[counter], action Action, next Next) {
		v := api.Version()
		before = api.State().Count
		next(action)
		after = api.State().Count
		applied = api.Version() != v
	}

	st := New(counter{Count: 10}, gain(), WithMiddleware[counter](mw))
	st.Dispatch(decrease{})

	assert.Equal(t, 10, before)
	assert.Equal(t, 9, after)
	assert.True(t, applied)
}

func TestMiddleware_ShortCircuit(t *testing.T) {
	reducerCalls := 0
	reducer := func(s counter, a Action) counter {
		reducerCalls++
		return gain()(s, a)
	}
	drop := func(api API[counter], action Action, next Next) {}
	afterDrop := false
	inner := func(api API[counter], action Action, next Next) {
		afterDrop = true
		next(action)
	}

	st := New(counter{}, reducer, WithMiddleware[counter](drop, inner))
	rec := &recorder{}
	Subscribe(st, rec)

	st.Dispatch(increase{})

	assert.Equal(t, 0, reducerCalls)
	assert.False(t, afterDrop, "middleware after the dropping one must not run")
	assert.Equal(t, []int{0}, rec.seen, "only the replay notification")
	assert.Equal(t, uint64(0), st.Version())
}

func TestMiddleware_TransformsAction(t *testing.T) {
	flip := func(api API[counter], action Action, next Next) {
		if action.ActionType() == "increase" {
			next(decrease{})
			return
		}
		next(action)
	}

	st := New(counter{}, gain(), WithMiddleware[counter](flip))
	st.Dispatch(increase{})

	assert.Equal(t, counter{Count: -1}, st.State())
}

func TestWithMiddleware_CopiesAndSkipsNil(t *testing.T) {
	var log []string
	mws := []Middleware[counter]{
		func(api API[counter], action Action, next Next) {
			log = append(log, "first")
			next(action)
		},
		nil,
	}

	st := New(counter{}, gain(), WithMiddleware(mws...))
	mws[0] = func(api API[counter], action Action, next Next) {
		log = append(log, "replaced")
		next(action)
	}
	st.Dispatch(increase{})

	assert.Equal(t, []string{"first"}, log)
	assert.Equal(t, counter{Count: 1}, st.State())
}

func TestDispatchThunk_ConditionalDispatch(t *testing.T) {
	incrementIfOdd := func(s counter, api API[counter]) {
		if s.Count%2 != 0 {
			api.Dispatch(increase{})
		}
	}

	st := New(counter{Count: 2}, gain())
	st.DispatchThunk(incrementIfOdd)
	assert.Equal(t, 2, st.State().Count)

	st.Dispatch(increase{})
	st.DispatchThunk(incrementIfOdd)
	assert.Equal(t, 4, st.State().Count)
}

func TestDispatchThunk_BypassesMiddlewareOnlyAtOuterLevel(t *testing.T) {
	var seen []string
	mw := func(api API[counter], action Action, next Next) {
		seen = append(seen, action.ActionType())
		next(action)
	}

	st := New(counter{}, gain(), WithMiddleware[counter](mw))
	st.DispatchThunk(func(s counter, api API[counter]) {
		api.Dispatch(increase{})
		api.Dispatch(increase{})
		api.Dispatch(decrease{})
	})

	assert.Equal(t, []string{"increase", "increase", "decrease"}, seen)
	assert.Equal(t, 1, st.State().Count)
}

func TestDispatchThunk_Nil(t *testing.T) {
	st := New(counter{}, gain())

	assert.NotPanics(t, func() { st.DispatchThunk(nil) })
	assert.Equal(t, 0, st.Depth())
}

func TestCombine(t *testing.T) {
	set := Handlers[counter]{
		"set_count": func(_ counter, a Action) counter { return counter{Count: a.(setCount).Count} },
	}.Reducer()

	st := New(counter{}, Combine(gain(), nil, set))
	st.Dispatch(setCount{Count: 5})
	st.Dispatch(increase{})
	st.Dispatch(unrelated{})

	assert.Equal(t, counter{Count: 6}, st.State())
}

func TestHandlers_ReducerCopiesTable(t *testing.T) {
	h := Handlers[counter]{
		"increase": func(s counter, _ Action) counter { return counter{Count: s.Count + 1} },
	}
	r := h.Reducer()
	h["increase"] = func(s counter, _ Action) counter { return counter{Count: s.Count + 100} }

	assert.Equal(t, counter{Count: 1}, r(counter{}, increase{}))
	assert.Equal(t, counter{Count: 3}, r(counter{Count: 3}, nil))
}

func TestEndToEnd_IncreaseIncreaseDecrease(t *testing.T) {
	st := New(counter{Count: 0}, gain())
	rec := &recorder{}
	Subscribe(st, rec)

	st.Dispatch(increase{})
	st.Dispatch(increase{})
	st.Dispatch(decrease{})

	assert.Equal(t, counter{Count: 1}, st.State())
	assert.Equal(t, []int{0, 1, 2, 1}, rec.seen)
}

func TestReentrancy_ReducerDispatchPanics(t *testing.T) {
	var st *Store[counter]
	reducer := func(s counter, a Action) counter {
		if a.ActionType() == "unrelated" {
			st.Dispatch(increase{})
		}
		return gain()(s, a)
	}
	st = New(counter{}, reducer)

	v := capturePanic(func() { st.Dispatch(unrelated{}) })

	err, ok := v.(error)
	require.True(t, ok, "expected an error panic, got %v", v)
	assert.True(t, IsReducerDispatch(err))
	assert.False(t, IsDepthExceeded(err))

	// The store recovers once the panic unwinds.
	assert.Equal(t, 0, st.Depth())
	st.Dispatch(increase{})
	assert.Equal(t, counter{Count: 1}, st.State())
}

func TestDispatch_ReducerPanicPropagates(t *testing.T) {
	reducer := func(s counter, a Action) counter {
		if a.ActionType() == "unrelated" {
			panic("boom")
		}
		return gain()(s, a)
	}
	st := New(counter{Count: 2}, reducer)
	rec := &recorder{}
	Subscribe(st, rec)

	v := capturePanic(func() { st.Dispatch(unrelated{}) })

	assert.Equal(t, "boom", v)
	assert.Equal(t, counter{Count: 2}, st.State())
	assert.Equal(t, uint64(0), st.Version())
	assert.Equal(t, 0, st.Depth())
	assert.False(t, st.reducing)
	assert.Equal(t, []int{2}, rec.seen, "no notification for a failed reduction")

	st.Dispatch(increase{})
	assert.Equal(t, counter{Count: 3}, st.State())
	assert.Equal(t, []int{2, 3}, rec.seen)
}

func TestReentrancy_DepthExceeded(t *testing.T) {
	st := New(counter{}, gain(), WithMaxDepth[counter](3))
	armed := false
	st.SubscribeFunc(func(counter) {
		if armed {
			st.Dispatch(increase{})
		}
	})
	armed = true

	v := capturePanic(func() { st.Dispatch(increase{}) })

	err, ok := v.(error)
	require.True(t, ok, "expected an error panic, got %v", v)
	assert.True(t, IsDepthExceeded(err))

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.Depth)
	assert.Equal(t, "increase", de.ActionType)

	assert.Equal(t, 3, st.State().Count)
	assert.Equal(t, 0, st.Depth())
}

func TestDispatchError_Error(t *testing.T) {
	err := newDepthError("increase", 64, 64)
	assert.Equal(t, "DEPTH_EXCEEDED: nested dispatch exceeded max depth (64 >= 64) (action=increase, depth=64)", err.Error())

	err = newReducerDispatchError("", 1)
	assert.Equal(t, "REDUCER_DISPATCH: reducers must not dispatch (depth=1)", err.Error())
}
