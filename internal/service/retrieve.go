package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smallwat3r/secretdrop/internal/codec"
	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/smallwat3r/secretdrop/internal/metrics"
	"github.com/smallwat3r/secretdrop/internal/ratelimit"
	"github.com/smallwat3r/secretdrop/internal/store"
)

// Get returns the message for id as seen by caller. Reading does not count
// as an attempt. A destroy-on-read record is deleted once it has been
// decoded; two concurrent readers may both see it.
func (s *Service) Get(ctx context.Context, id, caller string) (*domain.ReadResult, error) {
	if id == "" {
		return nil, domain.ErrMissingParameter
	}

	left, err := s.limiter.Peek(ctx, ratelimit.KindRead, id, caller)
	if err != nil {
		return nil, backendErr("peek attempts", err)
	}

	key := s.recordKey(id)
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(left), nil
	}
	if err != nil {
		return nil, backendErr("get record", err)
	}

	ttl, err := s.store.TTL(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// expired between the two calls
		return notFound(left), nil
	case err != nil:
		return nil, backendErr("record ttl", err)
	case ttl == store.NoExpiry:
		ttl = 0
	}

	p := codec.Decode(raw)
	if p.DestroyOnRead {
		if _, err := s.store.Delete(ctx, key); err != nil {
			return nil, backendErr("destroy on read", err)
		}
		metrics.RecordsDestroyed.WithLabelValues(metrics.ReasonRead).Inc()
		slog.Info("record destroyed on read", "id", id)
	}

	res := &domain.ReadResult{
		Found:         true,
		Info:          domain.FormatInfo(ttl, p.DestroyOnRead, left),
		Message:       p.Message,
		DestroyOnRead: p.DestroyOnRead,
		AttemptsLeft:  left,
		ExpiresIn:     ttl,
	}
	if ttl > 0 {
		res.ExpiresAt = s.now().Add(ttl).Truncate(time.Second)
	}
	return res, nil
}

func notFound(left int) *domain.ReadResult {
	return &domain.ReadResult{Message: domain.NotFoundMessage, AttemptsLeft: left}
}

// GetFiles returns only the attachments of id. It neither consumes the
// record nor counts an attempt, and answers an empty list for anything it
// cannot make sense of.
func (s *Service) GetFiles(ctx context.Context, id string) ([]domain.File, error) {
	if id == "" {
		return nil, domain.ErrMissingParameter
	}
	raw, err := s.store.Get(ctx, s.recordKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return []domain.File{}, nil
	}
	if err != nil {
		return nil, backendErr("get record", err)
	}
	return codec.DecodeFiles(raw), nil
}

// RegisterAttempt records one failed read (typically a wrong decryption
// key) by caller. Passing the cap purges the record and returns
// ErrAttemptsExceeded. Attempts are counted whether or not the record
// exists.
func (s *Service) RegisterAttempt(ctx context.Context, id, caller string) (domain.AttemptResult, error) {
	if id == "" {
		return domain.AttemptResult{}, domain.ErrMissingParameter
	}
	res, err := s.limiter.CheckAndIncrement(ctx, ratelimit.KindRead, id, caller)
	if err != nil {
		return domain.AttemptResult{}, backendErr("register attempt", err)
	}
	if res.Exceeded {
		return domain.AttemptResult{Exceeded: true}, domain.ErrAttemptsExceeded
	}
	return domain.AttemptResult{AttemptsLeft: res.Left}, nil
}
