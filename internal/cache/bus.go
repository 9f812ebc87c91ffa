package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus broadcasts invalidated keys to every subscriber, across instances when
// backed by Redis. Delivery is at-most-once; a subscriber that misses a key
// refetches on its next read.
type Bus interface {
	Publish(ctx context.Context, key Key) error
	// Subscribe streams invalidated keys until ctx is done.
	Subscribe(ctx context.Context) (<-chan Key, error)
}

const subscriberBuffer = 16

type MemoryBus struct {
	mu   sync.Mutex
	subs map[chan Key]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan Key]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, key Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- key:
		default:
			// subscriber is behind; it already has a pending refresh
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan Key, error) {
	ch := make(chan Key, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

const invalidationChannel = "storefront:invalidate"

type RedisBus struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisBus(client *redis.Client, log *slog.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, key Key) error {
	if err := b.client.Publish(ctx, invalidationChannel, string(key)).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Key, error) {
	ps := b.client.Subscribe(ctx, invalidationChannel)
	// wait for the subscription confirmation so no publish is missed after return
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan Key, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() {
			if err := ps.Close(); err != nil {
				b.log.Warn("closing redis subscription", "error", err)
			}
		}()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- Key(msg.Payload):
				default:
				}
			}
		}
	}()
	return out, nil
}
