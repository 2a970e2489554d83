// Package uuid issues the identifiers that tie log lines to harvest cycles
// and work items. They are never persisted; the store keys articles by URL.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator implements harvest.IDGenerator. Its v7 identifiers are time
// ordered, so the items of one cycle sort together in the logs.
type Generator struct{}

// New returns a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a fresh cycle or item identifier.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new cycle/item id: %w", err)
	}
	return id.String(), nil
}
