package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// The two logical channels of the pipeline. Both carry the same payload
// shape (a serialized record set) but serve different subscribers: the
// persistence channel feeds the durable store, the broadcast channel feeds
// live sessions. Delivery is at-least-once and FIFO per channel; there is
// no ordering guarantee between the two.
const (
	ChannelBroadcast = "gold-prices"
	ChannelPersist   = "gold-prices-db"
)

// Redis is a pub/sub bus on a Redis connection.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex
}

// NewRedis subscribes to the given channels for listening. Publishing works
// regardless of the subscription set.
func NewRedis(client *redis.Client, channels ...string) *Redis {
	return &Redis{
		client: client,
		pubsub: client.Subscribe(context.Background(), channels...),
	}
}

// Publish emits payload on the named channel.
func (b *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	return nil
}

// Listen is a blocking loop delivering every received message to onMessage.
// It returns when ctx is cancelled or the subscription closes.
func (b *Redis) Listen(ctx context.Context, onMessage func(channel string, payload []byte)) {
	ch := b.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			onMessage(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (b *Redis) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pubsub.Close(); err != nil {
		return err
	}
	return nil
}
