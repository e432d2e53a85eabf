package cache

import (
	"context"
	"fmt"
	"time"
)

// Lease is an advisory lock held in a Provider under a single key. With a shared backend
// (Valkey) it serialises work across processes; with MemoryProvider only within one process.
type Lease struct {
	provider Provider
	key      string
	owner    string
}

// AcquireLease tries once to take key for ttl. It reports false, without error, when the
// lease is already held.
func AcquireLease(ctx context.Context, p Provider, key, owner string, ttl time.Duration) (*Lease, bool, error) {
	if p == nil {
		p = NoopProvider{}
	}
	ok, err := p.SetNX(ctx, key, []byte(owner), ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{provider: p, key: key, owner: owner}, true, nil
}

// Holder returns the owner recorded for key, or "" when the lease is free.
func Holder(ctx context.Context, p Provider, key string) string {
	if p == nil {
		return ""
	}
	data, err := p.Get(ctx, key)
	if err != nil {
		return ""
	}
	return string(data)
}

// Release drops the lease if this holder still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	current, err := l.provider.Get(ctx, l.key)
	if err != nil {
		// Expired or never visible (noop backend): nothing to release.
		return nil
	}
	if string(current) != l.owner {
		return nil
	}
	return l.provider.Del(ctx, l.key)
}
