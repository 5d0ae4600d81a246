// Package memory provides the in-process task queue shared by the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/firmlight-worker/internal/metrics"
	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// Queue is an unbounded FIFO of task descriptors. Enqueue never blocks, so
// the control channel reader can hand off work without stalling; Dequeue
// blocks until an item arrives, the context ends, or the queue is closed.
type Queue struct {
	mu     sync.Mutex
	items  []task.Descriptor
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue appends a descriptor to the tail of the queue.
func (q *Queue) Enqueue(d task.Descriptor) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return task.ErrQueueClosed
	}
	q.items = append(q.items, d)
	depth := len(q.items)
	q.mu.Unlock()

	metrics.SetQueueDepth(depth)
	q.signal()
	return nil
}

// Dequeue removes the head of the queue, waiting while it is empty.
// Items still queued at Close are drained before ErrQueueClosed is returned.
func (q *Queue) Dequeue(ctx context.Context) (task.Descriptor, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = task.Descriptor{}
			q.items = q.items[1:]
			depth := len(q.items)
			q.mu.Unlock()

			metrics.SetQueueDepth(depth)
			if depth > 0 {
				// Pass the wakeup on so another idle worker sees the remaining items.
				q.signal()
			}
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return task.Descriptor{}, task.ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return task.Descriptor{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.ready:
		case <-q.done:
		}
	}
}

// Len reports the number of queued descriptors.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new descriptors and wakes blocked consumers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
