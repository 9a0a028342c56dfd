// Package service holds the record lifecycle: submission, retrieval with
// destroy-on-read and attempt accounting, and deletion.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/smallwat3r/secretdrop/internal/metrics"
	"github.com/smallwat3r/secretdrop/internal/ratelimit"
	"github.com/smallwat3r/secretdrop/internal/store"
)

// AttemptLimiter is the part of ratelimit.Limiter the services rely on.
type AttemptLimiter interface {
	CheckAndIncrement(ctx context.Context, kind ratelimit.Kind, id, caller string) (ratelimit.Result, error)
	Peek(ctx context.Context, kind ratelimit.Kind, id, caller string) (int, error)
}

type IDGenerator interface {
	Generate() (string, error)
}

type Options struct {
	// KeyPrefix is prepended to ids to form store keys. Empty keeps records
	// written by older deployments reachable.
	KeyPrefix        string
	MaxExpireSeconds int64
}

type Service struct {
	store            store.Store
	limiter          AttemptLimiter
	ids              IDGenerator
	keyPrefix        string
	maxExpireSeconds int64
	now              func() time.Time
}

func New(s store.Store, limiter AttemptLimiter, ids IDGenerator, opts Options) *Service {
	maxExpire := opts.MaxExpireSeconds
	if maxExpire <= 0 {
		maxExpire = domain.MaxExpireSeconds
	}
	return &Service{
		store:            s,
		limiter:          limiter,
		ids:              ids,
		keyPrefix:        opts.KeyPrefix,
		maxExpireSeconds: maxExpire,
		now:              time.Now,
	}
}

func (s *Service) recordKey(id string) string {
	return s.keyPrefix + id
}

func backendErr(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("%w: %s: %w", domain.ErrBackend, op, err)
}
