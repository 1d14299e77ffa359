package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSender publishes every message as JSON on a redis channel so other
// services can subscribe to workflow changes
type RedisSender struct {
	rdb     redis.UniversalClient
	channel string
}

func NewRedisSender(rdb redis.UniversalClient, channel string) *RedisSender {
	if channel == "" {
		channel = "society:workflow-events"
	}
	return &RedisSender{rdb: rdb, channel: channel}
}

func (s *RedisSender) Name() string { return "redis" }

func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	return nil
}
