// Package id provides ID generation helpers.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates unique ID strings.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	v, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return v.String(), nil
}

// NewKey returns a short hex key suitable for object names.
func (Generator) NewKey() (string, error) {
	v, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return v.String(), nil
}
