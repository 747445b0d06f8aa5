package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

const channelPrefix = "tickets:"

// ChannelName returns the Redis channel used for a partition.
func ChannelName(partition domain.TicketStatus) string {
	return channelPrefix + string(partition)
}

// RedisFanout publishes events through Redis so every service instance
// relays them to its own connected clients.
type RedisFanout struct {
	client *redis.Client
	local  *Hub
	logger *zap.Logger
}

// NewRedisFanout wires a Redis client to the local hub.
func NewRedisFanout(client *redis.Client, local *Hub, logger *zap.Logger) *RedisFanout {
	return &RedisFanout{client: client, local: local, logger: logger}
}

// Publish sends the event to the partition's Redis channel.
func (f *RedisFanout) Publish(ctx context.Context, partition domain.TicketStatus, event LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}
	if err := f.client.Publish(ctx, ChannelName(partition), body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", partition, err)
	}
	return nil
}

// Run relays messages from all partition channels into the local hub until
// ctx is cancelled.
func (f *RedisFanout) Run(ctx context.Context) error {
	pubsub := f.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	f.logger.Info("relaying lifecycle events from redis", zap.String("pattern", channelPrefix+"*"))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f.relay(ctx, msg)
		}
	}
}

func (f *RedisFanout) relay(ctx context.Context, msg *redis.Message) {
	partition := domain.TicketStatus(strings.TrimPrefix(msg.Channel, channelPrefix))
	if !partition.Valid() {
		f.logger.Warn("ignoring message on unknown partition", zap.String("channel", msg.Channel))
		return
	}

	var event LifecycleEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		f.logger.Warn("ignoring undecodable lifecycle event", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	_ = f.local.Publish(ctx, partition, event)
}
