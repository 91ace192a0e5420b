package domain

import (
	"context"

	"dnakit/internal/models"
)

// Upstream is the booking backend as seen by the reconciler and the kit editor.
type Upstream interface {
	ListBookings(ctx context.Context) ([]models.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, bookingID string, upd models.BookingUpdate) error
	CancelBooking(ctx context.Context, bookingID string) error
	ListServices(ctx context.Context) ([]models.Service, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetKitByBooking(ctx context.Context, bookingID string) (*models.Kit, error)
	ListKits(ctx context.Context) ([]models.Kit, error)
	CreateKit(ctx context.Context, kit models.Kit) (*models.Kit, error)
	UpdateKitStatus(ctx context.Context, kitID string, status models.KitStatus) error
}

// SnapshotRepository keeps the last computed rows per user. A missing or
// unreadable snapshot is reported as (nil, nil).
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error)
	SetSnapshot(ctx context.Context, snap *models.Snapshot) error
	ClearSnapshot(ctx context.Context, userID string) error
}

type Journal interface {
	Append(ctx context.Context, entry *models.JournalEntry) error
	ListByBooking(ctx context.Context, userID, bookingID string) ([]models.JournalEntry, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type Reconciler interface {
	Load(ctx context.Context, userID string) (*models.Snapshot, error)
	Rows(ctx context.Context, userID string, refresh bool) ([]models.Row, error)
	CheckIn(ctx context.Context, userID, bookingID string) (*models.ActionResult, error)
	ReceiveKit(ctx context.Context, userID, bookingID string) (*models.ActionResult, error)
	ShipKit(ctx context.Context, userID, bookingID string) (*models.ActionResult, error)
	Cancel(ctx context.Context, userID, bookingID string, confirmed bool) (*models.ActionResult, error)
	History(ctx context.Context, userID, bookingID string) ([]models.JournalEntry, error)
}

type KitEditor interface {
	List(ctx context.Context) ([]models.KitView, error)
	SetStatus(ctx context.Context, staffID, kitID string, status models.KitStatus) error
	Create(ctx context.Context, staffID string, req models.NewKit) (*models.Kit, error)
}
