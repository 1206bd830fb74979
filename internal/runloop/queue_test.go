package runloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedTask(name string) task {
	return task{name: name, run: func() {}}
}

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()

	for _, name := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(namedTask(name)))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.name)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTaskQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newTaskQueue()

	woke := make(chan struct{})
	go func() {
		<-q.Wait()
		close(woke)
	}()

	q.Close()
	q.Close()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by Close")
	}

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(namedTask("late")))
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_ConcurrentEnqueue(t *testing.T) {
	q := newTaskQueue()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(namedTask("x"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}
