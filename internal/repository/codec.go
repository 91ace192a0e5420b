package repository

import (
	"encoding/json"
	"fmt"

	"dnakit/internal/models"
)

func encodeSnapshot(snap *models.Snapshot) ([]byte, error) {
	if snap == nil || snap.UserID == "" {
		return nil, fmt.Errorf("snapshot without user id")
	}
	stored := *snap
	stored.Version = models.SnapshotSchemaVersion
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot returns nil for anything that is not a current-version
// snapshot of userID. Callers treat nil as "load again".
func decodeSnapshot(data []byte, userID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot: %w", err)
	}
	if snap.Version != models.SnapshotSchemaVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, models.SnapshotSchemaVersion)
	}
	if snap.UserID != userID {
		return nil, fmt.Errorf("snapshot belongs to %q", snap.UserID)
	}
	return &snap, nil
}
