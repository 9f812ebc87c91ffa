package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Queries is the read-through cache of server-derived data. Reads for the same
// key are deduplicated, writes elsewhere invalidate keys and the invalidation is
// broadcast to every subscriber.
type Queries struct {
	cache Cache
	bus   Bus
	log   *slog.Logger
	sfg   singleflight.Group // Prevents cache stampede
}

func NewQueries(c Cache, b Bus, log *slog.Logger) *Queries {
	return &Queries{cache: c, bus: b, log: log}
}

// Fetch returns the cached value for key or loads, stores and returns it.
func Fetch[T any](ctx context.Context, q *Queries, key Key, load func(ctx context.Context) (T, error)) (T, error) {
	v, err, _ := q.sfg.Do(string(key), func() (interface{}, error) {
		var cached T
		data, err := q.cache.Get(ctx, key)
		if err == nil {
			if errDecode := json.Unmarshal(data, &cached); errDecode == nil {
				return cached, nil
			} else {
				q.log.WarnContext(ctx, "cache decode error", "key", key, "error", errDecode)
			}
		} else if !errors.Is(err, ErrCacheMiss) {
			q.log.WarnContext(ctx, "cache get error", "key", key, "error", err) // log cache error but continue
		}

		loaded, errLoad := load(ctx)
		if errLoad != nil {
			return nil, errLoad
		}
		q.store(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Put overwrites the cached value for key without notifying subscribers.
func Put[T any](ctx context.Context, q *Queries, key Key, value T) {
	q.store(ctx, key, value)
}

func (q *Queries) store(ctx context.Context, key Key, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		q.log.WarnContext(ctx, "cache encode error", "key", key, "error", err)
		return
	}
	if err := q.cache.Set(ctx, key, data); err != nil {
		q.log.WarnContext(ctx, "cache set error", "key", key, "error", err)
	}
}

// Invalidate drops keys and tells every subscriber to refetch them.
// It runs on a short detached context so a cancelled request still invalidates.
func (q *Queries) Invalidate(ctx context.Context, keys ...Key) {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := q.cache.Delete(ictx, keys...); err != nil {
		q.log.WarnContext(ctx, "cache invalidate error", "keys", keys, "error", err)
	}
	for _, k := range keys {
		q.sfg.Forget(string(k))
		if err := q.bus.Publish(ictx, k); err != nil {
			q.log.WarnContext(ctx, "invalidation broadcast error", "key", k, "error", err)
		}
	}
}

// Subscribe streams invalidated keys until ctx is done.
func (q *Queries) Subscribe(ctx context.Context) (<-chan Key, error) {
	ch, err := q.bus.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe to invalidations: %w", err)
	}
	return ch, nil
}
