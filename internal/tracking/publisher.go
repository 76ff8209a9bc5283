package tracking

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubPublisher publishes transmissions to a Pub/Sub topic. The worker
// consumes the topic and persists position snapshots, keeping the API
// process free of write-path database work.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
	logger    zerolog.Logger
}

// PubSubPublisherConfig holds configuration for the publisher.
type PubSubPublisherConfig struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// NewPubSubPublisher creates a publisher for driver transmissions.
func NewPubSubPublisher(ctx context.Context, cfg PubSubPublisherConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		topicName: cfg.TopicName,
		logger:    cfg.Logger,
	}, nil
}

// Publish sends one transmission to the topic. Errors are returned rather
// than retried here; the live feed already holds the position, so a lost
// snapshot only affects history.
func (p *PubSubPublisher) Publish(ctx context.Context, t Transmission) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling transmission: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"driver_id":       t.DriverID,
			"organization_id": t.OrganizationID,
		},
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing transmission: %w", err)
	}

	p.logger.Debug().
		Str("driver_id", t.DriverID).
		Str("topic", p.topicName).
		Msg("transmission published")
	return nil
}

// Close releases the underlying client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}
