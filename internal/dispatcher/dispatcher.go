// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/firmlight-worker/internal/task"
	"github.com/JakeFAU/firmlight-worker/internal/worker"
)

const (
	// MinWorkers is the smallest pool a node may run.
	MinWorkers = 1
	// MaxWorkers is the largest pool a node may run.
	MaxWorkers = 5
)

// ErrPoolSize is returned when the worker count is outside [MinWorkers, MaxWorkers].
var ErrPoolSize = errors.New("worker pool size out of range")

// Queue is the producer side of the task queue.
type Queue interface {
	Enqueue(d task.Descriptor) error
	Len() int
}

// Dispatcher fans out queue work to a fixed pool of workers.
type Dispatcher struct {
	queue   Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue Queue, workers []*worker.Worker) (*Dispatcher, error) {
	if n := len(workers); n < MinWorkers || n > MaxWorkers {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrPoolSize, n, MinWorkers, MaxWorkers)
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}, nil
}

// Run starts all workers and blocks until every one of them has returned,
// which happens when ctx ends or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue without blocking.
func (d *Dispatcher) Enqueue(item task.Descriptor) error {
	if err := d.queue.Enqueue(item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Pending reports how many descriptors wait in the queue.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Size reports the number of workers in the pool.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}
