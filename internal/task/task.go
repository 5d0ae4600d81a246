// Package task defines the unit of work pushed by the broker and the result
// a worker reports back for it.
package task

import (
	"context"
	"encoding/json"
	"time"
)

// Type identifies the handler a task is routed to.
type Type string

const (
	// TypeMean averages a chunk of numbers.
	TypeMean Type = "MEAN"
	// TypeFactorization lists the divisors of a number inside a chunk range.
	TypeFactorization Type = "FACTORIZATION"
	// TypeCrawler runs a bounded breadth-first crawl from each seed URL.
	TypeCrawler Type = "CRAWLER"
)

// FullTaskData is the task-level metadata shared by every chunk of a task.
type FullTaskData struct {
	ID    string          `json:"id"`
	Type  Type            `json:"type"`
	Title string          `json:"title,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Descriptor is one chunk of work as it sits in the local queue.
type Descriptor struct {
	FullTaskData FullTaskData
	Chunk        json.RawMessage
	ReceivedAt   time.Time
}

// ID returns the broker-assigned task identifier.
func (d Descriptor) ID() string {
	return d.FullTaskData.ID
}

// Type returns the routing key for the descriptor.
func (d Descriptor) Type() Type {
	return d.FullTaskData.Type
}

// Result is the message emitted on the control channel once a chunk finishes.
// A nil Result value is encoded as JSON null and means the chunk failed.
type Result struct {
	TaskID string `json:"taskId"`
	Result any    `json:"result"`
}

// Handler executes the work for a single task type.
type Handler interface {
	Execute(ctx context.Context, d Descriptor) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, d Descriptor) (any, error)

// Execute calls f(ctx, d).
func (f HandlerFunc) Execute(ctx context.Context, d Descriptor) (any, error) {
	return f(ctx, d)
}
