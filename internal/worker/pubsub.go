// Package worker provides background processing for FleetGate. The single
// job today is draining the driver-transmission topic into the position
// snapshot table, so the API's live feed has a durable fallback.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/tracking"
)

// SnapshotStore persists driver positions.
type SnapshotStore interface {
	Upsert(ctx context.Context, t tracking.Transmission) error
}

// PubSubHandler consumes driver transmissions from Pub/Sub.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	store            SnapshotStore
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Store            SnapshotStore
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 50
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		store:            cfg.Store,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. Blocks until ctx is canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting transmission consumer")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("driver_id", msg.Attributes["driver_id"]).
		Logger()

	transmission, err := DecodeTransmission(msg.Data)
	if err != nil {
		// A malformed message will never become parseable; redelivery
		// would loop forever.
		logger.Error().Err(err).Msg("dropping malformed transmission")
		msg.Ack()
		return
	}

	if err := h.store.Upsert(ctx, *transmission); err != nil {
		logger.Error().Err(err).Msg("persisting snapshot failed")
		msg.Nack()
		return
	}

	logger.Debug().
		Dur("duration", time.Since(startTime)).
		Msg("snapshot persisted")
	msg.Ack()
}

// DecodeTransmission parses and validates a transmission message.
func DecodeTransmission(data []byte) (*tracking.Transmission, error) {
	var t tracking.Transmission
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing transmission: %w", err)
	}
	if t.DriverID == "" {
		return nil, fmt.Errorf("transmission has no driver id")
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	return &t, nil
}
