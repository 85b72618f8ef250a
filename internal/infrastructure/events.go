package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"order-workflow/internal/model"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PubSubPublisher publishes order events to a Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher connects to the project and creates the topic if it does not exist.
func NewPubSubPublisher(ctx context.Context, cfg EventsConfig, credentialsJSON string) (*PubSubPublisher, error) {
	var opts []option.ClientOption
	if cred := strings.TrimSpace(credentialsJSON); cred != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cred)))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.Topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check topic %s: %w", cfg.Topic, err)
	}
	if !exists {
		if topic, err = client.CreateTopic(ctx, cfg.Topic); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.Topic, err)
		}
	}
	return &PubSubPublisher{client: client, topic: topic}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event model.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"tipo": event.Type, "codigo": event.Code},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// LogPublisher writes events to the logger when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event model.OrderEvent) error {
	p.logger.Debug("order event",
		zap.String("type", event.Type),
		zap.String("order_id", event.OrderID),
		zap.String("code", event.Code),
		zap.Int("stage", event.Stage),
		zap.String("actor", event.Actor),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
