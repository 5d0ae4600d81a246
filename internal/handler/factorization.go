package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// cancelCheckInterval bounds how many candidates are tried between context checks.
const cancelCheckInterval = 1 << 16

type factorRange struct {
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
}

type factorData struct {
	NumberToFactor *int64 `json:"numberToFactor"`
}

// Factorization lists, in ascending order, every i in [start, end] that
// divides fullTaskData.data.numberToFactor. Zero is never a candidate.
func Factorization(ctx context.Context, d task.Descriptor) (any, error) {
	var rng factorRange
	if err := json.Unmarshal(d.Chunk, &rng); err != nil {
		return nil, fmt.Errorf("%w: %w", task.ErrInvalidChunk, err)
	}
	if rng.Start == nil || rng.End == nil {
		return nil, fmt.Errorf("%w: start and end are required", task.ErrInvalidChunk)
	}
	var data factorData
	if len(d.FullTaskData.Data) > 0 {
		if err := json.Unmarshal(d.FullTaskData.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: data: %w", task.ErrInvalidChunk, err)
		}
	}
	if data.NumberToFactor == nil {
		return nil, fmt.Errorf("%w: numberToFactor is required", task.ErrInvalidChunk)
	}

	number := *data.NumberToFactor
	divisors := make([]int64, 0)
	for i, n := *rng.Start, int64(0); i <= *rng.End; i, n = i+1, n+1 {
		if n%cancelCheckInterval == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("factorization canceled: %w", ctx.Err())
		}
		if i != 0 && number%i == 0 {
			divisors = append(divisors, i)
		}
		if i == *rng.End {
			break // keeps i+1 from overflowing when end is MaxInt64
		}
	}
	return divisors, nil
}
