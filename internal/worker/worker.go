// Package worker implements the loop that drains the task queue, runs each
// chunk through its handler and reports exactly one result per chunk.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/inflight"
	"github.com/JakeFAU/firmlight-worker/internal/metrics"
	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// ErrHandlerPanic wraps a panic recovered from a handler.
var ErrHandlerPanic = errors.New("handler panicked")

const (
	outcomeSucceeded   = "succeeded"
	outcomeFailed      = "failed"
	outcomeUnknownType = "unknown_type"
)

// Queue hands out descriptors.
type Queue interface {
	Dequeue(ctx context.Context) (task.Descriptor, error)
}

// Resolver maps a task type to its handler.
type Resolver interface {
	Resolve(t task.Type) (task.Handler, error)
}

// Reporter emits a result on the control channel.
type Reporter interface {
	Report(ctx context.Context, result task.Result) error
}

// Tracker records running executions.
type Tracker interface {
	Start(d task.Descriptor, worker int) (string, error)
	Finish(executionID string) (inflight.Entry, error)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Worker consumes queue items and executes them one at a time.
type Worker struct {
	index    int
	queue    Queue
	resolver Resolver
	reporter Reporter
	tracker  Tracker
	clock    Clock
	logger   *zap.Logger
}

// New constructs a Worker. tracker may be nil.
func New(
	index int,
	queue Queue,
	resolver Resolver,
	reporter Reporter,
	tracker Tracker,
	clock Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		index:    index,
		queue:    queue,
		resolver: resolver,
		reporter: reporter,
		tracker:  tracker,
		clock:    clock,
		logger:   logger.With(zap.Int("worker", index)),
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, task.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("task_id", item.ID()), zap.String("type", string(item.Type())))
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item task.Descriptor) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("task_id", item.ID()), zap.String("type", string(item.Type())))
	executionID := w.track(item, logger)

	start := w.clock.Now()
	result, err := w.execute(ctx, item)
	elapsed := w.clock.Now().Sub(start)

	outcome := outcomeSucceeded
	switch {
	case errors.Is(err, task.ErrUnknownTaskType):
		outcome = outcomeUnknownType
		logger.Warn("unknown task type", zap.Error(err))
	case err != nil:
		outcome = outcomeFailed
		logger.Error("task failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	default:
		logger.Info("task completed", zap.Duration("elapsed", elapsed))
	}
	if err != nil {
		result = nil
	}
	metrics.ObserveTask(string(item.Type()), outcome, elapsed)

	if executionID != "" {
		if _, ferr := w.tracker.Finish(executionID); ferr != nil {
			logger.Warn("inflight finish failed", zap.Error(ferr))
		}
	}

	if rerr := w.reporter.Report(ctx, task.Result{TaskID: item.ID(), Result: result}); rerr != nil {
		metrics.ObserveResultEmitted("failed")
		logger.Error("task result emit failed", zap.Error(rerr))
		return
	}
	metrics.ObserveResultEmitted("sent")
}

// execute runs the handler, converting a panic into an error.
func (w *Worker) execute(ctx context.Context, item task.Descriptor) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("handler panic recovered",
				zap.String("task_id", item.ID()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			result, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	handler, err := w.resolver.Resolve(item.Type())
	if err != nil {
		return nil, err
	}
	return handler.Execute(ctx, item)
}

func (w *Worker) track(item task.Descriptor, logger *zap.Logger) string {
	if w.tracker == nil {
		return ""
	}
	id, err := w.tracker.Start(item, w.index)
	if err != nil {
		logger.Warn("inflight start failed", zap.Error(err))
		return ""
	}
	return id
}
