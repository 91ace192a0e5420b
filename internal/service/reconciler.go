package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"dnakit/internal/domain"
	"dnakit/internal/events"
	"dnakit/internal/metrics"
	"dnakit/internal/models"
	"dnakit/internal/upstream"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type ReconcilerConfig struct {
	KitFetchConcurrency int
	ResultURLTemplate   string
}

// Reconciler merges bookings, kits, services and staff into rows for one
// customer and performs the row actions.
type Reconciler struct {
	upstream  domain.Upstream
	snapshots domain.SnapshotRepository
	journal   domain.Journal
	eventBus  domain.EventPublisher
	cfg       ReconcilerConfig
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewReconciler(
	up domain.Upstream,
	snapshots domain.SnapshotRepository,
	journal domain.Journal,
	eventBus domain.EventPublisher,
	cfg ReconcilerConfig,
	logger *zerolog.Logger,
) *Reconciler {
	if cfg.KitFetchConcurrency <= 0 {
		cfg.KitFetchConcurrency = models.DefaultKitFetchConcurrency
	}
	if cfg.ResultURLTemplate == "" {
		cfg.ResultURLTemplate = models.DefaultResultURLTemplate
	}
	return &Reconciler{
		upstream:  up,
		snapshots: snapshots,
		journal:   journal,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Load fetches everything afresh, stores the resulting snapshot and
// returns it. Only a failure to list bookings fails the load.
func (r *Reconciler) Load(ctx context.Context, userID string) (*models.Snapshot, error) {
	var (
		bookings []models.Booking
		services []models.Service
		users    []models.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bookings, err = r.upstream.ListBookings(gctx)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if services, err = r.upstream.ListServices(gctx); err != nil {
			r.logger.Warn().Err(err).Msg("service lookup failed, showing raw ids")
			metrics.IncDegraded("services_unavailable")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if users, err = r.upstream.ListUsers(gctx); err != nil {
			r.logger.Warn().Err(err).Msg("staff lookup failed, showing raw ids")
			metrics.IncDegraded("staff_unavailable")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mine := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.CustomerID == userID {
			mine = append(mine, b)
		}
	}

	kits, err := r.fetchKits(ctx, mine)
	if err != nil {
		return nil, err
	}

	serviceByID := make(map[string]models.Service, len(services))
	for _, s := range services {
		serviceByID[s.ID] = s
	}
	staffNames := make(map[string]string, len(users))
	for _, u := range users {
		staffNames[u.ID] = u.DisplayName()
	}

	rows := make([]models.Row, 0, len(mine))
	for i, b := range mine {
		rows = append(rows, r.buildRow(b, kits[i], serviceByID, staffNames))
	}
	SortRows(rows)

	snap := &models.Snapshot{
		Version:  models.SnapshotSchemaVersion,
		UserID:   userID,
		Rows:     rows,
		LoadedAt: r.now().UTC(),
	}
	r.save(ctx, snap)
	return snap, nil
}

// fetchKits looks up each booking's kit with bounded concurrency. A missing
// or failed kit leaves a nil slot.
func (r *Reconciler) fetchKits(ctx context.Context, bookings []models.Booking) ([]*models.Kit, error) {
	kits := make([]*models.Kit, len(bookings))

	var g errgroup.Group
	g.SetLimit(r.cfg.KitFetchConcurrency)
	for i, b := range bookings {
		i, b := i, b
		g.Go(func() error {
			kit, err := r.upstream.GetKitByBooking(ctx, b.BookingID)
			switch {
			case err == nil:
				kits[i] = kit
			case errors.Is(err, upstream.ErrNotFound):
			case ctx.Err() != nil:
			default:
				r.logger.Warn().Err(err).Str("booking_id", b.BookingID).Msg("kit lookup failed, row shows placeholder")
				metrics.IncDegraded("kit_unavailable")
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return kits, nil
}

func (r *Reconciler) buildRow(b models.Booking, kit *models.Kit, services map[string]models.Service, staff map[string]string) models.Row {
	day, clock := models.SplitDate(b.Date)
	row := models.Row{
		ID:         b.ID,
		BookingID:  b.BookingID,
		CustomerID: b.CustomerID,
		Date:       b.Date,
		Day:        day,
		Time:       clock,
		Address:    b.Address,
		Method:     b.Method,
		Status:     b.Status,
		ServiceID:  b.ServiceID,
		StaffID:    b.StaffID,
		StaffName:  resolveName(b.StaffID, staff[b.StaffID]),
		KitStatus:  models.KitNone,
	}

	if svc, ok := services[b.ServiceID]; ok {
		row.ServiceName = resolveName(b.ServiceID, svc.Name)
		row.ServicePrice = svc.Price
	} else {
		row.ServiceName = resolveName(b.ServiceID, "")
	}

	if kit != nil {
		row.KitID = kit.KitID
		row.KitStatus = kit.Status
	}

	row.Actions = Eligible(row, r.cfg.ResultURLTemplate)
	return row
}

// resolveName falls back to the raw id, then to the placeholder.
func resolveName(id, name string) string {
	switch {
	case name != "":
		return name
	case id != "":
		return id
	default:
		return models.Placeholder
	}
}

// Rows returns the caller's rows, from the stored snapshot unless refresh
// is set or no usable snapshot exists.
func (r *Reconciler) Rows(ctx context.Context, userID string, refresh bool) ([]models.Row, error) {
	var (
		snap *models.Snapshot
		err  error
	)
	if refresh {
		snap, err = r.Load(ctx, userID)
	} else {
		snap, err = r.current(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return snap.Rows, nil
}

func (r *Reconciler) current(ctx context.Context, userID string) (*models.Snapshot, error) {
	snap, err := r.snapshots.GetSnapshot(ctx, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("snapshot read failed, reloading")
		snap = nil
	}
	if snap != nil {
		return snap, nil
	}
	return r.Load(ctx, userID)
}

func (r *Reconciler) save(ctx context.Context, snap *models.Snapshot) {
	if err := r.snapshots.SetSnapshot(ctx, snap); err != nil {
		r.logger.Warn().Err(err).Str("user_id", snap.UserID).Msg("failed to store snapshot")
	}
}

// actionPlan is one action applied to one row. Exactly one upstream
// resource is written.
type actionPlan struct {
	kind     models.ActionKind
	resource string
	from     string
	to       string
	done     func(row models.Row) bool
	write    func(ctx context.Context, row models.Row) error
	apply    func(row *models.Row)
}

func (r *Reconciler) CheckIn(ctx context.Context, userID, bookingID string) (*models.ActionResult, error) {
	return r.run(ctx, userID, bookingID, actionPlan{
		kind:     models.ActionCheckIn,
		resource: models.ResourceBooking,
		to:       string(models.BookingCheckedIn),
		done:     func(row models.Row) bool { return row.Status == models.BookingCheckedIn },
		write: func(ctx context.Context, row models.Row) error {
			return r.upstream.UpdateBooking(ctx, row.BookingID, row.Booking().UpdateWithStatus(models.BookingCheckedIn))
		},
		apply: func(row *models.Row) { row.Status = models.BookingCheckedIn },
	})
}

func (r *Reconciler) ReceiveKit(ctx context.Context, userID, bookingID string) (*models.ActionResult, error) {
	return r.run(ctx, userID, bookingID, r.kitPlan(models.ActionReceiveKit, models.KitReceived))
}

func (r *Reconciler) ShipKit(ctx context.Context, userID, bookingID string) (*models.ActionResult, error) {
	return r.run(ctx, userID, bookingID, r.kitPlan(models.ActionShipKit, models.KitToWarehouse))
}

func (r *Reconciler) kitPlan(kind models.ActionKind, target models.KitStatus) actionPlan {
	return actionPlan{
		kind:     kind,
		resource: models.ResourceKit,
		to:       string(target),
		done: func(row models.Row) bool {
			return row.KitID != "" && row.KitStatus == target
		},
		write: func(ctx context.Context, row models.Row) error {
			return r.upstream.UpdateKitStatus(ctx, row.KitID, target)
		},
		apply: func(row *models.Row) { row.KitStatus = target },
	}
}

// Cancel requires confirmed; replaying it on a cancelled booking does not.
func (r *Reconciler) Cancel(ctx context.Context, userID, bookingID string, confirmed bool) (*models.ActionResult, error) {
	return r.run(ctx, userID, bookingID, actionPlan{
		kind:     models.ActionCancel,
		resource: models.ResourceBooking,
		to:       string(models.BookingCancelled),
		done:     func(row models.Row) bool { return row.Status == models.BookingCancelled },
		write: func(ctx context.Context, row models.Row) error {
			if !confirmed {
				return ErrConfirmationRequired
			}
			return r.upstream.CancelBooking(ctx, row.BookingID)
		},
		apply: func(row *models.Row) { row.Status = models.BookingCancelled },
	})
}

func (r *Reconciler) run(ctx context.Context, userID, bookingID string, plan actionPlan) (*models.ActionResult, error) {
	snap, err := r.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx, ok := snap.Find(bookingID)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", plan.kind, bookingID, ErrBookingNotFound)
	}
	row, moved, err := r.refreshRow(ctx, userID, snap.Rows[idx])
	if errors.Is(err, ErrBookingNotFound) {
		snap.Rows = slices.Delete(snap.Rows, idx, idx+1)
		r.save(ctx, snap)
		return nil, fmt.Errorf("%s %s: %w", plan.kind, bookingID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", plan.kind, bookingID, err)
	}
	if moved {
		row.Actions = Eligible(row, r.cfg.ResultURLTemplate)
		snap.Rows[idx] = row
		r.save(ctx, snap)
	}

	if plan.resource == models.ResourceKit {
		plan.from = string(row.KitStatus)
	} else {
		plan.from = string(row.Status)
	}
	log := r.logger.With().
		Str("user_id", userID).
		Str("booking_id", bookingID).
		Str("action", string(plan.kind)).
		Logger()

	if plan.done(row) {
		log.Info().Msg("action already applied, nothing written")
		r.publish(userID, row, plan, models.OutcomeNoop, nil)
		return &models.ActionResult{Action: plan.kind, Outcome: models.OutcomeNoop, Row: row}, nil
	}

	if moved {
		log.Info().Str("status", string(row.Status)).Str("kit_status", string(row.KitStatus)).Msg("backend state moved, action not applied")
		r.publish(userID, row, plan, models.OutcomeRejected, ErrStateChanged)
		return nil, fmt.Errorf("%s %s (status %q, kit %q): %w", plan.kind, bookingID, row.Status, row.KitStatus, ErrStateChanged)
	}

	if !allowed(row, plan.kind) {
		r.publish(userID, row, plan, models.OutcomeRejected, ErrActionNotAllowed)
		return nil, fmt.Errorf("%s %s (status %q, kit %q): %w", plan.kind, bookingID, row.Status, row.KitStatus, ErrActionNotAllowed)
	}

	if err := plan.write(ctx, row); err != nil {
		if errors.Is(err, ErrConfirmationRequired) {
			return nil, fmt.Errorf("%s %s: %w", plan.kind, bookingID, err)
		}
		log.Error().Err(err).Msg("upstream write failed, stored state unchanged")
		r.publish(userID, row, plan, models.OutcomeFailed, err)
		return nil, fmt.Errorf("%s %s: %w", plan.kind, bookingID, err)
	}

	plan.apply(&row)
	row.Actions = Eligible(row, r.cfg.ResultURLTemplate)
	snap.Rows[idx] = row
	r.save(ctx, snap)

	log.Info().Str("from", plan.from).Str("to", plan.to).Msg("action applied")
	r.publish(userID, row, plan, models.OutcomeOK, nil)
	return &models.ActionResult{Action: plan.kind, Outcome: models.OutcomeOK, Row: row}, nil
}

// refreshRow re-reads the booking and its kit so an action is decided on the
// backend's current state, not on the stored snapshot. moved reports whether
// any state the eligibility rules look at differs from the stored row.
func (r *Reconciler) refreshRow(ctx context.Context, userID string, row models.Row) (models.Row, bool, error) {
	var (
		booking *models.Booking
		kit     *models.Kit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := r.upstream.GetBooking(gctx, row.BookingID)
		if errors.Is(err, upstream.ErrNotFound) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		booking = b
		return nil
	})
	g.Go(func() error {
		k, err := r.upstream.GetKitByBooking(gctx, row.BookingID)
		if err != nil && !errors.Is(err, upstream.ErrNotFound) {
			return fmt.Errorf("get kit: %w", err)
		}
		kit = k
		return nil
	})
	if err := g.Wait(); err != nil {
		return row, false, err
	}
	if booking == nil || booking.CustomerID != userID {
		return row, false, ErrBookingNotFound
	}

	fresh := row
	if booking.ID != "" {
		fresh.ID = booking.ID
	}
	fresh.Status = booking.Status
	fresh.Method = booking.Method
	fresh.Date = booking.Date
	fresh.Day, fresh.Time = models.SplitDate(booking.Date)
	fresh.Address = booking.Address
	if booking.ServiceID != row.ServiceID {
		fresh.ServiceID = booking.ServiceID
		fresh.ServiceName = resolveName(booking.ServiceID, "")
		fresh.ServicePrice = decimal.Zero
	}
	if booking.StaffID != row.StaffID {
		fresh.StaffID = booking.StaffID
		fresh.StaffName = resolveName(booking.StaffID, "")
	}
	fresh.KitID, fresh.KitStatus = "", models.KitNone
	if kit != nil {
		fresh.KitID, fresh.KitStatus = kit.KitID, kit.Status
	}

	moved := fresh.Status != row.Status || fresh.Method != row.Method ||
		fresh.KitID != row.KitID || fresh.KitStatus != row.KitStatus
	return fresh, moved, nil
}

func (r *Reconciler) publish(userID string, row models.Row, plan actionPlan, outcome string, cause error) {
	payload := events.ActionEventPayload{
		UserID:     userID,
		BookingID:  row.BookingID,
		KitID:      row.KitID,
		Action:     plan.kind,
		Resource:   plan.resource,
		FromStatus: plan.from,
		ToStatus:   plan.to,
		Outcome:    outcome,
		At:         r.now().UTC(),
	}
	if cause != nil {
		payload.Error = cause.Error()
	}
	if err := r.eventBus.PublishJSON(events.EventTypeFor(plan.kind), payload); err != nil {
		r.logger.Error().Err(err).Str("action", string(plan.kind)).Msg("failed to publish action event")
	}
}

// History returns the caller's journal entries for a booking.
func (r *Reconciler) History(ctx context.Context, userID, bookingID string) ([]models.JournalEntry, error) {
	return r.journal.ListByBooking(ctx, userID, bookingID)
}
