package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/smallwat3r/secretdrop/internal/metrics"
	"github.com/smallwat3r/secretdrop/internal/store"
)

// Kind separates counters for different operations on the same record.
type Kind string

const (
	KindRead   Kind = "read"
	KindDelete Kind = "delete"
)

type Policy struct {
	MaxAttempts int
	Window      time.Duration
	// PurgeOnExceed removes the guarded record together with the counter
	// once the cap is passed.
	PurgeOnExceed bool
}

type Result struct {
	Used     int
	Left     int
	Exceeded bool
}

// Limiter counts attempts per (kind, record, caller) in the store. The
// window starts with the first attempt and is never extended.
type Limiter struct {
	store     store.Store
	keyPrefix string
	policies  map[Kind]Policy
}

func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		KindRead:   {MaxAttempts: 5, Window: time.Hour, PurgeOnExceed: true},
		KindDelete: {MaxAttempts: 3, Window: time.Minute},
	}
}

// New returns a limiter. keyPrefix is the prefix records are stored under
// and is needed to purge them.
func New(s store.Store, keyPrefix string, policies map[Kind]Policy) *Limiter {
	return &Limiter{store: s, keyPrefix: keyPrefix, policies: policies}
}

func CounterKey(kind Kind, id, caller string) string {
	return fmt.Sprintf("attempts:%s:%s:%s", kind, id, caller)
}

func (l *Limiter) policy(kind Kind) (Policy, error) {
	p, ok := l.policies[kind]
	if !ok {
		return Policy{}, fmt.Errorf("no rate limit policy for %q", kind)
	}
	return p, nil
}

// CheckAndIncrement counts one attempt. When the cap is passed on a purging
// policy the record and the counter are deleted in the same call.
func (l *Limiter) CheckAndIncrement(ctx context.Context, kind Kind, id, caller string) (Result, error) {
	p, err := l.policy(kind)
	if err != nil {
		return Result{}, err
	}
	key := CounterKey(kind, id, caller)

	n, err := l.store.IncrWithExpire(ctx, key, p.Window)
	if err != nil {
		return Result{}, fmt.Errorf("count attempt: %w", err)
	}

	used := int(n)
	res := Result{Used: used, Left: max(p.MaxAttempts-used, 0)}
	if used <= p.MaxAttempts {
		return res, nil
	}

	res.Exceeded = true
	metrics.AttemptsExceeded.WithLabelValues(string(kind)).Inc()
	if p.PurgeOnExceed {
		if _, err := l.store.Delete(ctx, l.keyPrefix+id, key); err != nil {
			return res, fmt.Errorf("purge after exceeded attempts: %w", err)
		}
		metrics.RecordsDestroyed.WithLabelValues(metrics.ReasonPurged).Inc()
		slog.Info("record purged after too many attempts", "id", id, "kind", kind)
	}
	return res, nil
}

// Peek reports attempts left without counting one.
func (l *Limiter) Peek(ctx context.Context, kind Kind, id, caller string) (int, error) {
	p, err := l.policy(kind)
	if err != nil {
		return 0, err
	}
	raw, err := l.store.Get(ctx, CounterKey(kind, id, caller))
	if errors.Is(err, store.ErrNotFound) {
		return p.MaxAttempts, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read attempt counter: %w", err)
	}
	used, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("attempt counter %q: %w", raw, err)
	}
	return max(p.MaxAttempts-used, 0), nil
}
