package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNewTask(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := []byte(`{
		"fullTaskData": {"id": "t-1", "type": "FACTORIZATION", "title": "factor", "data": {"numberToFactor": 12}},
		"taskChunk": {"start": 1, "end": 10}
	}`)

	d, err := DecodeNewTask(payload, now)
	require.NoError(t, err)
	assert.Equal(t, "t-1", d.ID())
	assert.Equal(t, TypeFactorization, d.Type())
	assert.Equal(t, "factor", d.FullTaskData.Title)
	assert.JSONEq(t, `{"numberToFactor": 12}`, string(d.FullTaskData.Data))
	assert.JSONEq(t, `{"start": 1, "end": 10}`, string(d.Chunk))
	assert.Equal(t, now, d.ReceivedAt)
}

func TestDecodeNewTaskMissingChunk(t *testing.T) {
	t.Parallel()

	d, err := DecodeNewTask([]byte(`{"fullTaskData": {"id": "t-2", "type": "MEAN"}}`), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(d.Chunk))
}

func TestDecodeNewTaskErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `nope`},
		{name: "missing fullTaskData", payload: `{"taskChunk": [1]}`},
		{name: "fullTaskData not object", payload: `{"fullTaskData": 7}`},
		{name: "missing id", payload: `{"fullTaskData": {"type": "MEAN"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeNewTask([]byte(tt.payload), time.Time{})
			require.ErrorIs(t, err, ErrInvalidTask)
		})
	}
}
