package task

import (
	"encoding/json"
	"fmt"
	"time"
)

type newTaskEnvelope struct {
	FullTaskData json.RawMessage `json:"fullTaskData"`
	TaskChunk    json.RawMessage `json:"taskChunk"`
}

// DecodeNewTask turns a raw newTask event payload into a Descriptor stamped
// with receivedAt. A missing chunk decodes as JSON null so handlers can report
// it as invalid input instead of the event being dropped.
func DecodeNewTask(payload []byte, receivedAt time.Time) (Descriptor, error) {
	var env newTaskEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	if len(env.FullTaskData) == 0 {
		return Descriptor{}, fmt.Errorf("%w: missing fullTaskData", ErrInvalidTask)
	}
	var full FullTaskData
	if err := json.Unmarshal(env.FullTaskData, &full); err != nil {
		return Descriptor{}, fmt.Errorf("%w: fullTaskData: %w", ErrInvalidTask, err)
	}
	if full.ID == "" {
		return Descriptor{}, fmt.Errorf("%w: missing task id", ErrInvalidTask)
	}
	chunk := env.TaskChunk
	if len(chunk) == 0 {
		chunk = json.RawMessage("null")
	}
	return Descriptor{
		FullTaskData: full,
		Chunk:        chunk,
		ReceivedAt:   receivedAt,
	}, nil
}
