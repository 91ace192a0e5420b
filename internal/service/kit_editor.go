package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dnakit/internal/domain"
	"dnakit/internal/events"
	"dnakit/internal/metrics"
	"dnakit/internal/models"
	"dnakit/internal/upstream"

	"github.com/rs/zerolog"
)

// KitEditor backs the staff kit management table.
type KitEditor struct {
	upstream domain.Upstream
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewKitEditor(up domain.Upstream, eventBus domain.EventPublisher, logger *zerolog.Logger) *KitEditor {
	return &KitEditor{
		upstream: up,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns every kit joined with customer and staff names.
func (e *KitEditor) List(ctx context.Context) ([]models.KitView, error) {
	kits, err := e.upstream.ListKits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list kits: %w", err)
	}

	names := make(map[string]string)
	users, err := e.upstream.ListUsers(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("user lookup failed, showing raw ids")
		metrics.IncDegraded("staff_unavailable")
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}

	views := make([]models.KitView, 0, len(kits))
	for _, k := range kits {
		views = append(views, models.KitView{
			Kit:          k,
			CustomerName: resolveName(k.CustomerID, names[k.CustomerID]),
			StaffName:    resolveName(k.StaffID, names[k.StaffID]),
		})
	}
	sortKits(views)
	return views, nil
}

// SetStatus assigns one of the staff-settable statuses. Any such status may
// follow any other.
func (e *KitEditor) SetStatus(ctx context.Context, staffID, kitID string, status models.KitStatus) error {
	if !models.StaffCanSet(status) {
		return fmt.Errorf("%q: %w", status, ErrInvalidKitStatus)
	}

	kits, err := e.upstream.ListKits(ctx)
	if err != nil {
		return fmt.Errorf("list kits: %w", err)
	}
	var kit *models.Kit
	for i := range kits {
		if kits[i].KitID == kitID {
			kit = &kits[i]
			break
		}
	}
	if kit == nil {
		return fmt.Errorf("kit %s: %w", kitID, ErrKitNotFound)
	}

	payload := events.ActionEventPayload{
		UserID:     staffID,
		BookingID:  kit.BookingID,
		KitID:      kitID,
		Action:     models.ActionSetKitStatus,
		Resource:   models.ResourceKit,
		FromStatus: string(kit.Status),
		ToStatus:   string(status),
	}

	if kit.Status == status {
		e.publish(payload, models.OutcomeNoop, nil)
		return nil
	}

	if err := e.upstream.UpdateKitStatus(ctx, kitID, status); err != nil {
		e.publish(payload, models.OutcomeFailed, err)
		return fmt.Errorf("set kit %s status: %w", kitID, err)
	}

	e.logger.Info().Str("kit_id", kitID).Str("from", string(kit.Status)).Str("to", string(status)).Str("staff_id", staffID).Msg("kit status changed")
	e.publish(payload, models.OutcomeOK, nil)
	return nil
}

// Create makes the kit for a booking. The status is forced from the
// booking's method and at-facility bookings must be checked in first.
func (e *KitEditor) Create(ctx context.Context, staffID string, req models.NewKit) (*models.Kit, error) {
	booking, err := e.upstream.GetBooking(ctx, req.BookingID)
	if errors.Is(err, upstream.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", req.BookingID, ErrBookingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", req.BookingID, err)
	}

	payload := events.ActionEventPayload{
		UserID:     staffID,
		BookingID:  booking.BookingID,
		Action:     models.ActionCreateKit,
		Resource:   models.ResourceKit,
		FromStatus: models.Placeholder,
		ToStatus:   string(booking.Method.InitialKitStatus()),
	}

	if booking.Status == models.BookingCancelled ||
		(booking.Method == models.MethodAtFacility && booking.Status != models.BookingCheckedIn) {
		e.publish(payload, models.OutcomeRejected, ErrKitCreationBlocked)
		return nil, fmt.Errorf("booking %s is %q: %w", booking.BookingID, booking.Status, ErrKitCreationBlocked)
	}

	existing, err := e.upstream.GetKitByBooking(ctx, booking.BookingID)
	switch {
	case err == nil && existing != nil:
		e.publish(payload, models.OutcomeRejected, ErrKitExists)
		return nil, fmt.Errorf("booking %s has kit %s: %w", booking.BookingID, existing.KitID, ErrKitExists)
	case err != nil && !errors.Is(err, upstream.ErrNotFound):
		return nil, fmt.Errorf("check existing kit: %w", err)
	}

	kit := models.Kit{
		BookingID:   booking.BookingID,
		CustomerID:  booking.CustomerID,
		StaffID:     req.StaffID,
		Description: req.Description,
		ReceiveDate: req.ReceiveDate,
		Address:     req.Address,
		Status:      booking.Method.InitialKitStatus(),
	}
	if kit.StaffID == "" {
		kit.StaffID = staffID
	}
	if kit.Address == "" {
		kit.Address = booking.Address
	}

	created, err := e.upstream.CreateKit(ctx, kit)
	if err != nil {
		e.publish(payload, models.OutcomeFailed, err)
		return nil, fmt.Errorf("create kit for booking %s: %w", booking.BookingID, err)
	}

	payload.KitID = created.KitID
	e.publish(payload, models.OutcomeOK, nil)
	return created, nil
}

func (e *KitEditor) publish(payload events.ActionEventPayload, outcome string, cause error) {
	payload.Outcome = outcome
	payload.At = e.now().UTC()
	if cause != nil {
		payload.Error = cause.Error()
	}
	if err := e.eventBus.PublishJSON(events.EventTypeFor(payload.Action), payload); err != nil {
		e.logger.Error().Err(err).Msg("failed to publish kit event")
	}
}
