package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// meanChunk accepts either a bare array of numbers or the broker's split shape
// {"chunk": [...], "percentage": n}.
type meanChunk []float64

func (m *meanChunk) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err == nil {
		*m = values
		return nil
	}
	var wrapped struct {
		Chunk *[]float64 `json:"chunk"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil || wrapped.Chunk == nil {
		return fmt.Errorf("expected array of numbers")
	}
	*m = *wrapped.Chunk
	return nil
}

// Mean returns the arithmetic mean of the chunk's numbers.
func Mean(_ context.Context, d task.Descriptor) (any, error) {
	var values meanChunk
	if err := json.Unmarshal(d.Chunk, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", task.ErrInvalidChunk, err)
	}
	if len(values) == 0 {
		return nil, task.ErrEmptyInput
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}
