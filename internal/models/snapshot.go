package models

import "time"

// SnapshotSchemaVersion is bumped whenever Row changes shape. Stored
// snapshots with another version are discarded on read.
const SnapshotSchemaVersion = 1

// Snapshot is the last set of rows computed for one user.
type Snapshot struct {
	Version  int       `json:"version"`
	UserID   string    `json:"user_id"`
	Rows     []Row     `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Find returns the index of the row for bookingID.
func (s *Snapshot) Find(bookingID string) (int, bool) {
	if s == nil {
		return -1, false
	}
	for i := range s.Rows {
		if s.Rows[i].BookingID == bookingID {
			return i, true
		}
	}
	return -1, false
}
