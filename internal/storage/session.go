package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// SessionKey scopes a checkout session to one owner and one browser tab.
type SessionKey struct {
	Owner string
	TabID string
}

func (k SessionKey) String() string {
	return k.Owner + ":" + k.TabID
}

// SessionStore holds checkout sessions for a limited time.
type SessionStore interface {
	Put(ctx context.Context, key SessionKey, s domain.CheckoutSession) error
	Get(ctx context.Context, key SessionKey) (*domain.CheckoutSession, error)
	Delete(ctx context.Context, key SessionKey) error
}

const sessionPrefix = "storefront:session:"

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (r *RedisSessionStore) Put(ctx context.Context, key SessionKey, s domain.CheckoutSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := r.client.Set(ctx, sessionPrefix+key.String(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, key SessionKey) (*domain.CheckoutSession, error) {
	data, err := r.client.Get(ctx, sessionPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var s domain.CheckoutSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, key SessionKey) error {
	if err := r.client.Del(ctx, sessionPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type memorySession struct {
	data      []byte
	expiresAt time.Time
}

// MemorySessionStore stores encoded sessions so callers never share state.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[SessionKey]memorySession
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[SessionKey]memorySession),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Put(_ context.Context, key SessionKey, s domain.CheckoutSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = memorySession{data: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, key SessionKey) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.now().After(e.expiresAt) {
		delete(m.sessions, key)
		return nil, ErrSessionNotFound
	}
	var s domain.CheckoutSession
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, key SessionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}
