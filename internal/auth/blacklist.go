package auth

import (
	"context"
	"time"
)

// KV is the subset of the cache the blacklist needs.
type KV interface {
	SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Blacklist records revoked token ids until the tokens would have expired anyway.
type Blacklist struct {
	kv     KV
	prefix string
}

// NewBlacklist creates a Blacklist storing keys as prefix+jti.
func NewBlacklist(kv KV, prefix string) *Blacklist {
	if prefix == "" {
		prefix = "jti:"
	}
	return &Blacklist{kv: kv, prefix: prefix}
}

// Revoke marks jti as revoked until exp. Already expired tokens are kept for a minute.
func (b *Blacklist) Revoke(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		ttl = time.Minute
	}
	_, err := b.kv.SetNX(ctx, b.prefix+jti, []byte("1"), ttl)
	return err
}

// IsRevoked reports whether jti has been revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return b.kv.Exists(ctx, b.prefix+jti)
}
