// Package uuid generates node and execution identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 strings, so execution IDs sort by
// start time.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NodeID names this worker process in logs. It falls back to a random v4 id
// when the v7 clock source fails.
func (g Generator) NodeID() string {
	id, err := g.NewID()
	if err != nil {
		return "node-" + uuid.NewString()[:8]
	}
	return "node-" + id[len(id)-12:]
}
