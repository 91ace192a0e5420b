package repository

import (
	"context"
	"sync/atomic"
	"time"

	"dnakit/internal/domain"
	"dnakit/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSnapshotRepository serves from the primary store and switches to
// the fallback when it errors, probing the primary again once a minute.
type FailoverSnapshotRepository struct {
	primary   domain.SnapshotRepository
	fallback  domain.SnapshotRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSnapshotRepository(primary, fallback domain.SnapshotRepository, logger *zerolog.Logger) *FailoverSnapshotRepository {
	return &FailoverSnapshotRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary snapshot repository failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverSnapshotRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSnapshotRepository) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary snapshot repository recovered")
	}
}

func (r *FailoverSnapshotRepository) GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	if r.usePrimary() {
		snap, err := r.primary.GetSnapshot(ctx, userID)
		if err == nil {
			r.markUp()
			return snap, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetSnapshot(ctx, userID)
}

func (r *FailoverSnapshotRepository) SetSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if r.usePrimary() {
		err := r.primary.SetSnapshot(ctx, snap)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetSnapshot(ctx, snap)
}

func (r *FailoverSnapshotRepository) ClearSnapshot(ctx context.Context, userID string) error {
	if r.usePrimary() {
		err := r.primary.ClearSnapshot(ctx, userID)
		if err == nil {
			r.markUp()
			// A stale fallback copy must not resurface after the next outage.
			_ = r.fallback.ClearSnapshot(ctx, userID)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearSnapshot(ctx, userID)
}
