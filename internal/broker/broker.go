// Package broker connects the node to its task broker. It logs in, routes
// inbound events to the local queue and carries taskResult messages back.
package broker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// Event names on the control channel.
const (
	EventNewTask          = "newTask"
	EventTaskResult       = "taskResult"
	EventTaskCompleted    = "taskCompleted"
	EventMeanTaskComplete = "meanTaskComplete"
)

var (
	// ErrConnect marks a failure to establish the control channel.
	ErrConnect = errors.New("control channel connect failed")
	// ErrChannelClosed is returned once the control channel is gone.
	ErrChannelClosed = errors.New("control channel closed")
	// ErrLoginFailed is returned when the broker rejects the credentials.
	ErrLoginFailed = errors.New("broker login failed")
)

// EventHandler consumes one inbound event. It must not block on task execution.
type EventHandler func(ctx context.Context, event string, payload json.RawMessage)

// Channel is an established control channel.
type Channel interface {
	// Serve delivers inbound events until ctx ends or the connection is lost.
	Serve(ctx context.Context, handle EventHandler) error
	// Report emits a taskResult. Concurrent calls never interleave on the wire.
	Report(ctx context.Context, result task.Result) error
	Close() error
}
