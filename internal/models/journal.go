package models

import "time"

const (
	ResourceBooking = "booking"
	ResourceKit     = "kit"
)

const (
	OutcomeOK       = "ok"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// JournalEntry records one action attempt and what it wrote.
type JournalEntry struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"user_id"`
	BookingID  string     `json:"booking_id"`
	KitID      string     `json:"kit_id,omitempty"`
	Action     ActionKind `json:"action"`
	Resource   string     `json:"resource"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	Outcome    string     `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
