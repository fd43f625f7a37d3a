package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroadcaster publishes change notifications on a Redis channel so other
// instances and dashboards can refresh without polling.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBroadcaster returns a broadcaster; a nil client or empty channel
// makes it a no-op.
func NewRedisBroadcaster(client *redis.Client, channel string, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel, logger: logger}
}

func (b *RedisBroadcaster) enabled() bool {
	return b != nil && b.client != nil && b.channel != ""
}

// Handle is an EventHandler.
func (b *RedisBroadcaster) Handle(ctx context.Context, event Event) error {
	if !b.enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		b.logger.Warn("redis: publish ticket change", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	return nil
}

// Register subscribes the broadcaster to every ticket change.
func (b *RedisBroadcaster) Register(d Dispatcher) func() {
	if !b.enabled() {
		return func() {}
	}
	return SubscribeAll(d, ChangeTypes, b.Handle)
}
