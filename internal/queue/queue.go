// Package queue publishes author-completion notices. The Provider
// interface decouples the scheduler from a specific broker, so runs
// work the same with or without Pub/Sub configured.
package queue

import (
	"context"
)

// Notice describes one completed author job.
type Notice struct {
	RunID        string `json:"run_id"`
	Author       string `json:"author"`
	Succeeded    bool   `json:"succeeded"`
	Publications int    `json:"publications"`
	BlobURI      string `json:"blob_uri,omitempty"`
}

// Provider is the common interface for a notice publisher.
type Provider interface {
	// Publish sends a completion notice. Implementations may deliver
	// asynchronously.
	Publish(ctx context.Context, n Notice) error

	// Close flushes pending messages and releases resources.
	Close() error
}

// NoOpProvider discards notices. It backs runs without a broker.
type NoOpProvider struct{}

// Publish does nothing and returns nil.
func (NoOpProvider) Publish(_ context.Context, _ Notice) error { return nil }

// Close does nothing and returns nil.
func (NoOpProvider) Close() error { return nil }
