package store

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

var _ Store = (*ValkeyStore)(nil)

type ValkeyStore struct {
	client     valkey.Client
	incrExpire *valkey.Lua
}

// NewValkeyStore dials with opt, usually built by valkey.ParseURL.
// Client-side caching is always turned off; every read goes to the server
// so expiry is never served stale.
func NewValkeyStore(ctx context.Context, opt valkey.ClientOption) (*ValkeyStore, error) {
	opt.DisableCache = true
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("valkey: %w", err)
	}
	s := NewValkeyStoreFromClient(client)
	if err := s.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return s, nil
}

func NewValkeyStoreFromClient(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{
		client:     client,
		incrExpire: valkey.NewLuaScript(incrExpireScript),
	}
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("valkey get: %w", err)
	}
	return b, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (s *ValkeyStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(valkey.BinaryString(value)).ExSeconds(ttlSeconds(ttl)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set with ttl: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Do(ctx, s.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey del: %w", err)
	}
	return n, nil
}

func (s *ValkeyStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey exists: %w", err)
	}
	return n > 0, nil
}

func (s *ValkeyStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ms, err := s.client.Do(ctx, s.client.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey pttl: %w", err)
	}
	switch {
	case ms == -2:
		return 0, ErrNotFound
	case ms < 0:
		return NoExpiry, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (s *ValkeyStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Do(ctx, s.client.B().Incr().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey incr: %w", err)
	}
	return n, nil
}

func (s *ValkeyStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Expire().Key(key).Seconds(ttlSeconds(ttl)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey expire: %w", err)
	}
	return n == 1, nil
}

func (s *ValkeyStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	args := []string{fmt.Sprintf("%d", ttlSeconds(ttl))}
	n, err := s.incrExpire.Exec(ctx, s.client, []string{key}, args).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey incr with expire: %w", err)
	}
	return n, nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
