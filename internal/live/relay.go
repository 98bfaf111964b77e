package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Relay forwards events published on a Redis channel into a Hub, so that
// updates from worker processes reach websocket clients of the api.
type Relay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{client: client, channel: channel, hub: hub, logger: logger}
}

// Run subscribes and relays until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so no event published right
	// after Run starts is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.logger.Info("relaying job updates", slog.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}
			r.hub.Broadcast([]byte(msg.Payload))
		}
	}
}
