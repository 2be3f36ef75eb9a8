package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"dm-chat/internal/models"
	"dm-chat/internal/observability"
)

// RedisChannel is the pub/sub channel carrying newMessage envelopes.
const RedisChannel = "chat:newMessage"

// RedisBroker fans messages out across instances via redis pub/sub.
type RedisBroker struct {
	client    *redis.Client
	deliverer Deliverer
	logger    *slog.Logger
}

// NewRedisBroker connects to addr and verifies it with PING.
func NewRedisBroker(ctx context.Context, addr string, deliverer Deliverer, logger *slog.Logger) (*RedisBroker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBroker{client: client, deliverer: deliverer, logger: logger}, nil
}

func (b *RedisBroker) PublishMessage(ctx context.Context, msg models.Message, headers map[string]string) error {
	body, err := json.Marshal(newEnvelope(msg))
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, RedisChannel, body).Err(); err != nil {
		observability.IncBrokerPublishError("redis")
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := decodeEnvelope([]byte(m.Payload))
			if err != nil {
				b.logger.Warn("dropping redis event", "error", err)
				continue
			}
			b.deliverer.DeliverMessage(msg)
		}
	}
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
