package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Provider defines the cache operations used by the registry client and the training lease.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider implements Provider but never stores data.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// SetNX pretends to store the value and reports success.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

// Del is a no-op for the noop cache.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopProvider) Close() error { return nil }

// MemoryProvider is a process-local Provider backed by go-cache. SetNX maps onto
// go-cache's Add, which is atomic under the cache's own lock.
type MemoryProvider struct {
	items *gocache.Cache
}

// NewMemoryProvider creates an in-process cache; expired entries are purged every cleanup interval.
func NewMemoryProvider(cleanup time.Duration) *MemoryProvider {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryProvider{items: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get returns a copy of the stored bytes or ErrCacheMiss.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), data...), nil
}

// Set stores a copy of value. A non-positive ttl means no expiry.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.items.Set(key, append([]byte(nil), value...), expiry(ttl))
	return nil
}

// SetNX stores value only when key is absent or expired.
func (m *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := m.items.Add(key, append([]byte(nil), value...), expiry(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

// Del removes key.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Close flushes the cache.
func (m *MemoryProvider) Close() error {
	m.items.Flush()
	return nil
}

func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}
