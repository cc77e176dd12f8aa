package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const broadcastChannel = "pixelboard:broadcast"

// envelope wraps an already encoded wire frame with the publishing instance so subscribers can
// skip their own messages.
type envelope struct {
	Instance string `msgpack:"i"`
	Payload  []byte `msgpack:"p"`
}

// Relay publishes broadcast frames to the other instances.
type Relay struct {
	rdb      *goredis.Client
	instance string
}

func NewRelay(rdb *goredis.Client, instance string) *Relay {
	return &Relay{rdb: rdb, instance: instance}
}

func (r *Relay) Publish(ctx context.Context, payload []byte) error {
	data, err := msgpack.Marshal(envelope{Instance: r.instance, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode relay envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, broadcastChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}
	return nil
}

// Subscriber delivers frames published by other instances to local connections.
type Subscriber struct {
	rdb      *goredis.Client
	instance string
	deliver  func([]byte)
}

func NewSubscriber(rdb *goredis.Client, instance string, deliver func([]byte)) *Subscriber {
	return &Subscriber{rdb: rdb, instance: instance, deliver: deliver}
}

// Run blocks until ctx is cancelled. ready is closed once the subscription is confirmed.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := s.rdb.Subscribe(ctx, broadcastChannel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", broadcastChannel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(msg.Payload)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Subscriber) handle(raw string) {
	var env envelope
	if err := msgpack.Unmarshal([]byte(raw), &env); err != nil {
		slog.Warn("dropping malformed relay message", "error", err)
		return
	}
	if env.Instance == s.instance {
		return
	}
	s.deliver(env.Payload)
}
