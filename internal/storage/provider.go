// Package storage defines the blob store used for screenshot objects.
// The interface decouples the service from a specific backend so tests and
// local development can run without cloud credentials.
package storage

import "context"

// Provider is the common interface for blob persistence.
type Provider interface {
	// Save writes data under the given object key.
	Save(ctx context.Context, key string, data []byte) error

	// Close releases any client resources.
	Close() error
}
