// Package notify defines publishers for run-completion events, so
// downstream consumers can react when a scrape or enrichment run finishes
// without polling the store file.
package notify

import (
	"context"
	"time"
)

// RunEvent summarizes one finished run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	StorePath  string    `json:"store_path"`
	Records    int       `json:"records"`
	Enriched   int       `json:"enriched,omitempty"`
	Skipped    int       `json:"skipped,omitempty"`
	Errors     int       `json:"errors,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Publisher is the common interface for a run-event sink.
type Publisher interface {
	// Publish sends one run event. Implementations may be fire-and-forget.
	Publish(ctx context.Context, event RunEvent) error
	// Close releases any client connections.
	Close() error
}

// NoOpPublisher drops events. It is the default when no broker is
// configured.
type NoOpPublisher struct{}

// Publish for NoOpPublisher does nothing and always returns nil.
func (NoOpPublisher) Publish(_ context.Context, _ RunEvent) error { return nil }

// Close for NoOpPublisher does nothing and always returns nil.
func (NoOpPublisher) Close() error { return nil }
