// Package events publishes domain events to Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/workflowguard/workflowguard/internal/ports"
)

const DefaultChannel = "workflowguard.events"

// RedisPublisher sends each event as JSON on a single channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event ports.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}
	return nil
}

// NoopPublisher drops events. Used when no Redis is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event ports.Event) error {
	return nil
}
