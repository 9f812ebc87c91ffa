package cache

import (
	"context"
	"errors"
)

// Cache stores encoded query results by key.
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, keys ...Key) error
}

var ErrCacheMiss = errors.New("cache miss")
