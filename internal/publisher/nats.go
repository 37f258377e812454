package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/chatvault/chatvault/internal/mirror"
	"github.com/chatvault/chatvault/internal/uploader"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements mirror.EventPublisher and uploader.OutcomePublisher
type NATSPublisher struct {
	nc NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: conn}
}

// Connect dials natsURL and returns a publisher over the connection.
func Connect(natsURL string) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNATSPublisher(conn), nil
}

// PublishBatchForwarded publishes a forwarded-batch event
func (p *NATSPublisher) PublishBatchForwarded(ctx context.Context, event mirror.BatchForwardedEvent) error {
	return p.publish("chatvault.backup.batch", event)
}

// PublishJobOutcome publishes a video job outcome event
func (p *NATSPublisher) PublishJobOutcome(ctx context.Context, event uploader.JobOutcomeEvent) error {
	return p.publish("chatvault.upload.outcome", event)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
