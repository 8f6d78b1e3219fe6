// Package archive defines providers that upload finished run artifacts,
// such as the final store snapshot, to durable blob storage. This
// abstraction keeps the harvester independent of a specific backend.
package archive

import "context"

// Provider is the common interface for an artifact archive backend.
type Provider interface {
	// Save uploads data under objectName.
	Save(ctx context.Context, objectName string, data []byte) error
	// Close releases any client connections.
	Close() error
}

// NoOpProvider discards artifacts. It is the default when no archive is
// configured and keeps archival strictly optional.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (NoOpProvider) Save(_ context.Context, _ string, _ []byte) error { return nil }

// Close for NoOpProvider does nothing and always returns nil.
func (NoOpProvider) Close() error { return nil }
