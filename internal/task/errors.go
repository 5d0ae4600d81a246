package task

import "errors"

var (
	// ErrUnknownTaskType is returned when no handler is registered for a type.
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrEmptyInput is returned when a chunk carries no values to work on.
	ErrEmptyInput = errors.New("empty task input")
	// ErrInvalidChunk is returned when a chunk does not match its handler's shape.
	ErrInvalidChunk = errors.New("invalid task chunk")
	// ErrInvalidTask is returned when a newTask payload cannot be decoded.
	ErrInvalidTask = errors.New("invalid task payload")
	// ErrQueueClosed is returned by queues that no longer hand out work.
	ErrQueueClosed = errors.New("queue closed")
)
