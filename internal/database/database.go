// Package database persists per-author scrape outcomes. The Provider
// interface decouples the scheduler from Postgres, so runs work the
// same with or without a database configured.
package database

import (
	"context"
	"time"
)

// Outcome is one author job result row.
type Outcome struct {
	RunID        string
	Author       string
	Succeeded    bool
	Publications int
	BlobURI      string
	BlobHash     string
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Provider is the common interface for the outcome store.
type Provider interface {
	// SaveOutcome writes one author outcome row.
	SaveOutcome(ctx context.Context, o Outcome) error

	// Close releases the connection pool.
	Close()
}

// NoOpProvider discards outcomes. It backs runs without a database.
type NoOpProvider struct{}

// SaveOutcome does nothing and returns nil.
func (NoOpProvider) SaveOutcome(_ context.Context, _ Outcome) error { return nil }

// Close does nothing.
func (NoOpProvider) Close() {}
