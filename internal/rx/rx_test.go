package rx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflux/internal/store"
)

type tally struct{ Count int }

type bump struct{}

func (bump) ActionType() string { return "bump" }

var tallyReducer = store.Handlers[tally]{
	"bump": func(s tally, _ store.Action) tally { return tally{Count: s.Count + 1} },
}.Reducer()

func counts(seen *[]int) func(tally) {
	return func(s tally) { *seen = append(*seen, s.Count) }
}

func TestStream_ReplayLatestToLateListeners(t *testing.T) {
	st := store.New(tally{}, tallyReducer)
	stream := NewAdapter(st).State()

	var early, late []int
	stream.Listen(counts(&early))

	st.Dispatch(bump{})
	st.Dispatch(bump{})

	stream.Listen(counts(&late))
	st.Dispatch(bump{})

	assert.Equal(t, []int{0, 1, 2, 3}, early)
	assert.Equal(t, []int{2, 3}, late, "late listener starts from the current state")
	assert.Equal(t, tally{Count: 3}, stream.Latest())
}

func TestAdapter_StateIsLazyAndCached(t *testing.T) {
	st := store.New(tally{}, tallyReducer)
	a := NewAdapter(st)
	assert.Equal(t, 0, st.Len(), "no store subscription before first use")

	first := a.State()
	second := a.State()

	assert.Same(t, first, second)
	assert.Equal(t, 1, st.Len(), "one store subscription shared by all listeners")

	first.Listen(func(tally) {})
	first.Listen(func(tally) {})
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, 2, first.Len())
}

func TestStream_CloseTearsDown(t *testing.T) {
	st := store.New(tally{}, tallyReducer)
	a := NewAdapter(st)
	stream := a.State()

	var seen []int
	l := stream.Listen(counts(&seen))
	ch := stream.Watch(context.Background())

	stream.Close()
	stream.Close()

	assert.True(t, stream.Closed())
	assert.False(t, l.Active())
	assert.Equal(t, 0, stream.Len())
	assert.Equal(t, 0, st.Len(), "store subscription removed")

	st.Dispatch(bump{})
	assert.Equal(t, []int{0}, seen)

	// Drain the replayed value, then the channel must be closed.
	<-ch
	_, ok := <-ch
	assert.False(t, ok)

	fresh := a.State()
	assert.NotSame(t, stream, fresh)
	assert.Equal(t, tally{Count: 1}, fresh.Latest())
}

func TestStream_ListenAfterClose(t *testing.T) {
	stream := NewAdapter(store.New(tally{}, tallyReducer)).State()
	stream.Close()

	called := false
	l := stream.Listen(func(tally) { called = true })

	assert.False(t, called)
	assert.False(t, l.Active())

	_, ok := <-stream.Watch(context.Background())
	assert.False(t, ok, "watch on a closed stream yields a closed channel")
}

func TestAdapter_Close(t *testing.T) {
	st := store.New(tally{}, tallyReducer)
	a := NewAdapter(st)
	a.State()

	a.Close()
	a.Close()

	assert.Equal(t, 0, st.Len())
}

func TestListener_Cancel(t *testing.T) {
	st := store.New(tally{}, tallyReducer)
	stream := NewAdapter(st).State()

	var seen []int
	l := stream.Listen(counts(&seen))
	st.Dispatch(bump{})
	l.Cancel()
	l.Cancel()
	st.Dispatch(bump{})

	assert.Equal(t, []int{0, 1}, seen)
	assert.Equal(t, 0, stream.Len())
	assert.Equal(t, 1, st.Len(), "cancelling a listener keeps the shared subscription")
}

func TestStream_WatchConflates(t *testing.T) {
	st := store.New(tally{}, tallyReducer)
	stream := NewAdapter(st).State()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := stream.Watch(ctx)
	st.Dispatch(bump{})
	st.Dispatch(bump{})
	st.Dispatch(bump{})

	select {
	case s := <-ch:
		assert.Equal(t, 3, s.Count, "reader sees only the newest state")
	case <-time.After(time.Second):
		t.Fatal("no state on watch channel")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, stream.Len())
}

type recordingDispatcher struct {
	actions []store.Action
}

func (d *recordingDispatcher) Dispatch(action store.Action) {
	d.actions = append(d.actions, action)
}

func TestSink_Put(t *testing.T) {
	st := store.New(tally{}, tallyReducer)
	sink := NewAdapter(st).Sink()

	sink.Put(bump{})
	sink.Put(nil)
	sink.Put(bump{})

	assert.Equal(t, 2, st.State().Count)
}

func TestSink_Drain(t *testing.T) {
	d := &recordingDispatcher{}
	sink := NewSink(d)

	actions := make(chan store.Action, 3)
	actions <- bump{}
	actions <- bump{}
	close(actions)

	require.NoError(t, sink.Drain(context.Background(), actions))
	assert.Len(t, d.actions, 2)
}

func TestSink_DrainStopsOnContext(t *testing.T) {
	sink := NewSink(&recordingDispatcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Drain(ctx, make(chan store.Action))
	assert.ErrorIs(t, err, context.Canceled)

	assert.Error(t, sink.Drain(context.Background(), nil))
}

func TestListener_SkipsOlderStates(t *testing.T) {
	stream := NewAdapter(store.New(tally{}, tallyReducer)).State()
	var seen []int
	l := stream.Listen(func(s tally) { seen = append(seen, s.Count) })

	// A publish that overtook the replay wins; the late replay is dropped.
	l.deliver(tally{Count: 5}, 3)
	l.deliver(tally{Count: 4}, 2)
	l.deliver(tally{Count: 5}, 3)

	assert.Equal(t, []int{0, 5}, seen)
}

func TestWatcher_DropsStaleOffer(t *testing.T) {
	w := &watcher[tally]{ch: make(chan tally, 1), done: make(chan struct{})}

	w.offer(tally{Count: 2}, 2)
	w.offer(tally{Count: 1}, 1)
	assert.Equal(t, tally{Count: 2}, <-w.ch)

	w.offer(tally{Count: 3}, 3)
	w.offer(tally{Count: 4}, 4)
	assert.Equal(t, tally{Count: 4}, <-w.ch)
}
