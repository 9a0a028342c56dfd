package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/smallwat3r/secretdrop/internal/codec"
	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/smallwat3r/secretdrop/internal/metrics"
)

// Submit stores a new record and returns its id. The value and its TTL are
// written atomically. Ids are not checked for collisions; a clash replaces
// the older record.
func (s *Service) Submit(ctx context.Context, in domain.SubmitInput) (string, error) {
	if in.ExpireSeconds < 1 || in.ExpireSeconds > s.maxExpireSeconds {
		return "", fmt.Errorf("%w: %d not in [1, %d]", domain.ErrInvalidExpiry, in.ExpireSeconds, s.maxExpireSeconds)
	}

	blob, err := encodeSubmission(in)
	if err != nil {
		return "", err
	}

	id, err := s.ids.Generate()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	ttl := time.Duration(in.ExpireSeconds) * time.Second
	if err := s.store.SetWithTTL(ctx, s.recordKey(id), blob, ttl); err != nil {
		return "", backendErr("store record", err)
	}

	metrics.RecordsCreated.WithLabelValues(strconv.FormatBool(in.DestroyOnRead)).Inc()
	metrics.RecordBytes.Observe(float64(len(blob)))
	slog.Debug("record stored", "id", id, "ttl", ttl, "destroy_on_read", in.DestroyOnRead)
	return id, nil
}

func encodeSubmission(in domain.SubmitInput) ([]byte, error) {
	switch a := in.Attachments.(type) {
	case domain.OpaqueBundle:
		return codec.EncodeBundle(in.Message, a, in.DestroyOnRead)
	case domain.DiscreteFiles:
		files := make([]domain.File, 0, len(a))
		for _, u := range a {
			files = append(files, domain.File{
				Name:    u.Name,
				Content: base64.StdEncoding.EncodeToString(u.Content),
				Size:    int64(len(u.Content)),
			})
		}
		return codec.Encode(codec.Payload{Message: in.Message, Files: files, DestroyOnRead: in.DestroyOnRead})
	case nil:
		return codec.Encode(codec.Payload{Message: in.Message, DestroyOnRead: in.DestroyOnRead})
	default:
		return nil, fmt.Errorf("unsupported attachments %T", a)
	}
}
