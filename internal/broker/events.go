package broker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/handler"
	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// Enqueuer accepts decoded descriptors without blocking.
type Enqueuer interface {
	Enqueue(d task.Descriptor) error
}

// Clock stamps received descriptors.
type Clock interface {
	Now() time.Time
}

// Events routes inbound control channel events.
type Events struct {
	enqueuer Enqueuer
	clock    Clock
	logger   *zap.Logger
}

// NewEvents builds the inbound event router.
func NewEvents(enqueuer Enqueuer, clock Clock, logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{enqueuer: enqueuer, clock: clock, logger: logger}
}

type completion struct {
	TaskID string          `json:"taskId"`
	Result json.RawMessage `json:"result"`
}

// Handle implements EventHandler.
func (e *Events) Handle(ctx context.Context, event string, payload json.RawMessage) {
	switch event {
	case EventNewTask:
		e.newTask(payload)
	case EventTaskCompleted:
		var c completion
		if err := json.Unmarshal(payload, &c); err != nil {
			e.logger.Warn("malformed taskCompleted event", zap.Error(err))
			return
		}
		e.logger.Info("task final result", zap.String("task_id", c.TaskID), zap.ByteString("result", c.Result))
	case EventMeanTaskComplete:
		e.meanTaskComplete(ctx, payload)
	default:
		e.logger.Debug("ignoring event", zap.String("event", event))
	}
}

func (e *Events) newTask(payload json.RawMessage) {
	d, err := task.DecodeNewTask(payload, e.clock.Now())
	if err != nil {
		e.logger.Warn("discarding malformed task", zap.Error(err))
		return
	}
	if err := e.enqueuer.Enqueue(d); err != nil {
		e.logger.Error("task enqueue failed", zap.String("task_id", d.ID()), zap.Error(err))
		return
	}
	e.logger.Info("task queued",
		zap.String("task_id", d.ID()),
		zap.String("type", string(d.Type())),
		zap.String("title", d.FullTaskData.Title),
	)
}

// meanTaskComplete combines the per-chunk means the broker aggregated.
func (e *Events) meanTaskComplete(ctx context.Context, payload json.RawMessage) {
	var c completion
	if err := json.Unmarshal(payload, &c); err != nil {
		e.logger.Warn("malformed meanTaskComplete event", zap.Error(err))
		return
	}
	mean, err := handler.Mean(ctx, task.Descriptor{Chunk: c.Result})
	if err != nil {
		e.logger.Warn("mean task result not combinable", zap.String("task_id", c.TaskID), zap.Error(err))
		return
	}
	e.logger.Info("task final result", zap.String("task_id", c.TaskID), zap.Any("mean", mean))
}
