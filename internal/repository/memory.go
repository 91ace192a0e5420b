package repository

import (
	"context"
	"sync"
	"time"

	"dnakit/internal/logging"
	"dnakit/internal/models"

	"github.com/rs/zerolog"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySnapshotRepository keeps encoded snapshots in process memory so a
// reader never shares row slices with the writer.
type MemorySnapshotRepository struct {
	snapshots sync.Map
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewMemorySnapshotRepository(ttl time.Duration, logger *zerolog.Logger) *MemorySnapshotRepository {
	return &MemorySnapshotRepository{
		ttl:    ttl,
		logger: logging.Component(logger, "snapshot_memory"),
		now:    time.Now,
	}
}

func (r *MemorySnapshotRepository) GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	val, ok := r.snapshots.Load(userID)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.snapshots.Delete(userID)
		return nil, nil
	}

	snap, err := decodeSnapshot(entry.data, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("discarding unreadable snapshot")
		r.snapshots.Delete(userID)
		return nil, nil
	}
	return snap, nil
}

func (r *MemorySnapshotRepository) SetSnapshot(ctx context.Context, snap *models.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	r.snapshots.Store(snap.UserID, memoryEntry{data: data, expiresAt: r.now().Add(r.ttl)})
	return nil
}

func (r *MemorySnapshotRepository) ClearSnapshot(ctx context.Context, userID string) error {
	r.snapshots.Delete(userID)
	return nil
}

// storeRaw is used by tests to plant arbitrary bytes.
func (r *MemorySnapshotRepository) storeRaw(userID string, data []byte) {
	r.snapshots.Store(userID, memoryEntry{data: data, expiresAt: r.now().Add(r.ttl)})
}
