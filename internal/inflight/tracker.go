// Package inflight keeps an in-memory record of the task chunks workers are
// executing right now.
package inflight

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// ErrNotFound is returned when an execution is not being tracked.
var ErrNotFound = errors.New("execution not found")

// IDGenerator mints execution identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Entry describes one running execution. The same task ID may appear more
// than once because the broker can hand a node several chunks of one task.
type Entry struct {
	ExecutionID string    `json:"executionId"`
	TaskID      string    `json:"taskId"`
	Type        task.Type `json:"type"`
	Title       string    `json:"title,omitempty"`
	Worker      int       `json:"worker"`
	ReceivedAt  time.Time `json:"receivedAt"`
	StartedAt   time.Time `json:"startedAt"`
}

// Tracker is a concurrency-safe registry of running executions.
type Tracker struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	completed uint64
	ids       IDGenerator
	clock     Clock
}

// NewTracker constructs an empty Tracker.
func NewTracker(ids IDGenerator, clock Clock) *Tracker {
	return &Tracker{
		entries: make(map[string]Entry),
		ids:     ids,
		clock:   clock,
	}
}

// Start records that worker began executing d and returns the execution ID.
func (t *Tracker) Start(d task.Descriptor, worker int) (string, error) {
	id, err := t.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("execution id: %w", err)
	}
	entry := Entry{
		ExecutionID: id,
		TaskID:      d.ID(),
		Type:        d.Type(),
		Title:       d.FullTaskData.Title,
		Worker:      worker,
		ReceivedAt:  d.ReceivedAt,
		StartedAt:   t.clock.Now(),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = entry
	return id, nil
}

// Finish removes an execution and returns what was recorded for it.
func (t *Tracker) Finish(executionID string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[executionID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	delete(t.entries, executionID)
	t.completed++
	return entry, nil
}

// Get fetches a running execution by ID.
func (t *Tracker) Get(executionID string) (Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[executionID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// List returns running executions, oldest first.
func (t *Tracker) List() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ExecutionID < out[j].ExecutionID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len reports how many executions are running.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Completed reports how many executions have finished since start.
func (t *Tracker) Completed() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed
}
