package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrClosed is returned when subscribing to a closed bus.
var ErrClosed = errors.New("pubsub: closed")

// RedisPubSub implements PubSub using Redis channels, so that every gateway
// instance sees store changes made by any other.
type RedisPubSub struct {
	client *redis.Client
	buffer int
}

// NewRedisPubSub connects to Redis and verifies the connection.
func NewRedisPubSub(cfg RedisConfig, buffer int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisPubSubFromClient(client, buffer), nil
}

// NewRedisPubSubFromClient wraps an existing client. The bus owns the client
// and closes it on Close.
func NewRedisPubSubFromClient(client *redis.Client, buffer int) *RedisPubSub {
	if buffer <= 0 {
		buffer = 1
	}
	return &RedisPubSub{client: client, buffer: buffer}
}

// Publish publishes an event to the specified channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan *Event
}

func (s *redisSubscription) Events() <-chan *Event { return s.events }

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}

// Subscribe subscribes to a specific channel. The subscription is confirmed
// with Redis before returning so no event published afterwards is missed.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan *Event, r.buffer),
	}
	go r.processMessages(ctx, sub)

	return sub, nil
}

// Close closes the Redis client.
func (r *RedisPubSub) Close() error {
	return r.client.Close()
}

// processMessages reads messages from the Redis pubsub and sends them to the event channel.
func (r *RedisPubSub) processMessages(ctx context.Context, sub *redisSubscription) {
	defer close(sub.events)
	defer sub.ps.Close()

	ch := sub.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}

			select {
			case sub.events <- &event:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip message
			}
		}
	}
}

var _ PubSub = (*RedisPubSub)(nil)
