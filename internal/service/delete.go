package service

import (
	"context"
	"log/slog"

	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/smallwat3r/secretdrop/internal/metrics"
	"github.com/smallwat3r/secretdrop/internal/ratelimit"
)

// Delete removes id on behalf of caller. Calls are rate limited per caller
// and id whether or not the record exists.
func (s *Service) Delete(ctx context.Context, id, caller string) error {
	if id == "" {
		return domain.ErrMissingParameter
	}

	res, err := s.limiter.CheckAndIncrement(ctx, ratelimit.KindDelete, id, caller)
	if err != nil {
		return backendErr("count delete attempt", err)
	}
	if res.Exceeded {
		return domain.ErrRateLimited
	}

	n, err := s.store.Delete(ctx, s.recordKey(id))
	if err != nil {
		return backendErr("delete record", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	metrics.RecordsDestroyed.WithLabelValues(metrics.ReasonDeleted).Inc()
	slog.Info("record deleted", "id", id)
	return nil
}
