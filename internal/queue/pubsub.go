package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PubSubProvider publishes notices to a Google Cloud Pub/Sub topic.
type PubSubProvider struct {
	Client *pubsub.Client
	Topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubProvider connects to Pub/Sub using Application Default
// Credentials and verifies the topic exists before any run starts.
func NewPubSubProvider(ctx context.Context, projectID, topicID string, logger *zap.Logger, opts ...option.ClientOption) (*PubSubProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close pubsub client after missing topic", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSubProvider{
		Client: client,
		Topic:  topic,
		logger: logger,
	}, nil
}

// Publish sends the notice as a JSON payload with author and run id
// attributes. Delivery is asynchronous; failures are logged rather than
// surfaced so a broker outage never fails a scrape job.
func (p *PubSubProvider) Publish(ctx context.Context, n Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	result := p.Topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"run_id": n.RunID,
			"author": n.Author,
		},
	})
	go func() {
		if _, err := result.Get(context.Background()); err != nil && p.logger != nil {
			p.logger.Warn("pubsub publish failed",
				zap.String("author", n.Author),
				zap.Error(err))
		}
	}()
	return nil
}

// Close flushes pending messages and closes the client connection.
func (p *PubSubProvider) Close() error {
	p.Topic.Stop()
	if err := p.Client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
