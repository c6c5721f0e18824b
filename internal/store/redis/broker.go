// Package redis implements the flag-event broker on Redis pub/sub, for
// deployments running more than one provider instance.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Broker struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Broker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Broker{client: client}, nil
}

func (b *Broker) Close() error {
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("redis.Broker.Close: %w", err)
	}
	return nil
}

func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.Broker.Publish: %w", err)
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := b.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.Broker.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}
