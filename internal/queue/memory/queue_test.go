package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/firmlight-worker/internal/task"
)

func descriptor(id string) task.Descriptor {
	return task.Descriptor{FullTaskData: task.FullTaskData{ID: id, Type: task.TypeMean}}
}

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan task.Descriptor, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to block on the empty queue
	if err := q.Enqueue(descriptor("task-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.ID() != "task-1" {
			t.Fatalf("expected task-1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueIsFIFOAndUnbounded(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	const n = 1000
	for i := range n {
		require.NoError(t, q.Enqueue(descriptor(fmt.Sprintf("task-%d", i))))
	}
	assert.Equal(t, n, q.Len())

	for i := range n {
		got, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("task-%d", i), got.ID())
	}
	assert.Zero(t, q.Len())
}

func TestQueueWakesEveryWaiter(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	const consumers = 5
	var wg sync.WaitGroup
	got := make(chan string, consumers)
	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			item, err := q.Dequeue(ctx)
			if err == nil {
				got <- item.ID()
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	for i := range consumers {
		require.NoError(t, q.Enqueue(descriptor(fmt.Sprintf("task-%d", i))))
	}
	wg.Wait()
	close(got)

	seen := map[string]bool{}
	for id := range got {
		seen[id] = true
	}
	assert.Len(t, seen, consumers)
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Enqueue(descriptor("left-over")))
	q.Close()

	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "left-over", item.ID())

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, task.ErrQueueClosed)
	require.ErrorIs(t, q.Enqueue(descriptor("late")), task.ErrQueueClosed)
	// Closing twice should be safe.
	q.Close()
}

func TestQueueCloseWakesBlockedConsumer(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, task.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("close did not wake consumer")
	}
}
