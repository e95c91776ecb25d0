package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Handler processes an incoming event.
type Handler func(ctx context.Context, event *Event) error

// Bus wraps a Redis client for structural-event pub/sub.
type Bus struct {
	client        *redis.Client
	channelPrefix string
	log           *slog.Logger
}

// NewBus creates a Redis pub/sub bus.
func NewBus(addr, password string, db int, channelPrefix string, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Bus{client: client, channelPrefix: channelPrefix, log: log}
}

// HealthCheck verifies Redis connectivity.
func (b *Bus) HealthCheck(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (b *Bus) Close() error {
	return b.client.Close()
}

// Publish sends an event to the channel for its type.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	channel := b.channelFor(event.EventType)
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}

	b.log.Debug("published event",
		"event_type", event.EventType,
		"symbol", event.Symbol,
		"channel", channel,
		"correlation_id", event.CorrelationID,
	)
	return nil
}

// Subscribe listens for events of the given type and calls handler for each.
// Blocks until ctx is cancelled. Returns nil on clean shutdown.
func (b *Bus) Subscribe(ctx context.Context, eventType string, handler Handler) error {
	channel := b.channelFor(eventType)
	pubsub := b.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	b.log.Info("subscribed to channel", "channel", channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("unsubscribed from channel", "channel", channel)
			return nil

		case msg, ok := <-ch:
			if !ok {
				b.log.Warn("subscription channel closed", "channel", channel)
				return nil
			}

			event, err := UnmarshalEvent([]byte(msg.Payload))
			if err != nil {
				b.log.Error("failed to unmarshal event",
					"channel", channel,
					"error", err,
					"payload_preview", truncate(msg.Payload, 200),
				)
				continue
			}

			b.log.Debug("received event",
				"event_type", event.EventType,
				"symbol", event.Symbol,
				"correlation_id", event.CorrelationID,
			)

			if err := handler(ctx, event); err != nil {
				b.log.Error("handler failed",
					"event_type", event.EventType,
					"correlation_id", event.CorrelationID,
					"error", err,
				)
			}
		}
	}
}

func (b *Bus) channelFor(eventType string) string {
	return b.channelPrefix + ":" + eventType
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
