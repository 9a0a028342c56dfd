// Package store is the thin key-value layer records and attempt counters
// live in. Every implementation offers the same TTL semantics as Redis.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("key not found")
	errNotInteger = errors.New("value is not an integer or out of range")
)

// NoExpiry is returned by TTL for a key that exists but never expires.
const NoExpiry time.Duration = -1

type Store interface {
	// Get returns ErrNotFound for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetWithTTL writes the value and its expiry as one atomic step, so the
	// key is never observable without a TTL.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes every given key in a single call and reports how many
	// existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// TTL returns ErrNotFound for a missing key and NoExpiry for a
	// persistent one.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IncrWithExpire increments the counter and, only when this increment
	// created it, sets its TTL. Later increments leave the window alone.
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// incrExpireScript is shared by the Redis-protocol adapters.
const incrExpireScript = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return n
`

func ttlSeconds(ttl time.Duration) int64 {
	s := int64(ttl / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
