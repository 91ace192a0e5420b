package service

import (
	"context"
	"sync"

	"dnakit/internal/events"
	"dnakit/internal/models"
	"dnakit/internal/upstream"

	"github.com/stretchr/testify/mock"
)

// fakeUpstream is an in-memory booking backend.
type fakeUpstream struct {
	mu sync.Mutex

	bookings []models.Booking
	services []models.Service
	users    []models.User
	kits     map[string]*models.Kit

	listErr     error
	servicesErr error
	usersErr    error
	kitErr      map[string]error
	writeErr    error

	kitCalls      int
	bookingWrites []models.BookingUpdate
	kitWrites     []models.KitStatus
	cancels       []string
	created       []models.Kit
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{kits: map[string]*models.Kit{}, kitErr: map[string]error{}}
}

func (f *fakeUpstream) ListBookings(context.Context) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Booking(nil), f.bookings...), nil
}

func (f *fakeUpstream) GetBooking(_ context.Context, bookingID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.BookingID == bookingID {
			b := b
			return &b, nil
		}
	}
	return nil, &upstream.Error{Endpoint: "appointments.get", StatusCode: 404}
}

func (f *fakeUpstream) UpdateBooking(_ context.Context, bookingID string, upd models.BookingUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.bookingWrites = append(f.bookingWrites, upd)
	for i := range f.bookings {
		if f.bookings[i].BookingID == bookingID {
			f.bookings[i].Status = upd.Status
		}
	}
	return nil
}

func (f *fakeUpstream) CancelBooking(_ context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.cancels = append(f.cancels, bookingID)
	for i := range f.bookings {
		if f.bookings[i].BookingID == bookingID {
			f.bookings[i].Status = models.BookingCancelled
		}
	}
	return nil
}

func (f *fakeUpstream) ListServices(context.Context) ([]models.Service, error) {
	if f.servicesErr != nil {
		return nil, f.servicesErr
	}
	return f.services, nil
}

func (f *fakeUpstream) ListUsers(context.Context) ([]models.User, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeUpstream) GetKitByBooking(_ context.Context, bookingID string) (*models.Kit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kitCalls++
	if err := f.kitErr[bookingID]; err != nil {
		return nil, err
	}
	kit, ok := f.kits[bookingID]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	k := *kit
	return &k, nil
}

func (f *fakeUpstream) ListKits(context.Context) ([]models.Kit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Kit, 0, len(f.kits))
	for _, k := range f.kits {
		out = append(out, *k)
	}
	return out, nil
}

func (f *fakeUpstream) CreateKit(_ context.Context, kit models.Kit) (*models.Kit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	kit.KitID = "K" + kit.BookingID
	f.created = append(f.created, kit)
	f.kits[kit.BookingID] = &kit
	k := kit
	return &k, nil
}

func (f *fakeUpstream) UpdateKitStatus(_ context.Context, kitID string, status models.KitStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.kitWrites = append(f.kitWrites, status)
	for _, k := range f.kits {
		if k.KitID == kitID {
			k.Status = status
		}
	}
	return nil
}

// mockPublisher records action events; every publish succeeds unless a
// test overrides the expectation.
type mockPublisher struct {
	mock.Mock
}

func newMockPublisher() *mockPublisher {
	m := &mockPublisher{}
	m.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

func (m *mockPublisher) types() []string {
	out := []string{}
	for _, c := range m.Calls {
		out = append(out, c.Arguments.String(0))
	}
	return out
}

func (m *mockPublisher) payloads() []events.ActionEventPayload {
	out := []events.ActionEventPayload{}
	for _, c := range m.Calls {
		if ev, ok := c.Arguments.Get(1).(events.ActionEventPayload); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (m *mockPublisher) outcomes() []string {
	out := []string{}
	for _, ev := range m.payloads() {
		out = append(out, ev.Outcome)
	}
	return out
}

// memorySnapshots is a minimal snapshot store with an optional read error.
type memorySnapshots struct {
	mu     sync.Mutex
	snaps  map[string]models.Snapshot
	getErr error
	sets   int
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{snaps: map[string]models.Snapshot{}}
}

func (m *memorySnapshots) GetSnapshot(_ context.Context, userID string) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.snaps[userID]
	if !ok {
		return nil, nil
	}
	s.Rows = append([]models.Row(nil), s.Rows...)
	return &s, nil
}

func (m *memorySnapshots) SetSnapshot(_ context.Context, snap *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	s := *snap
	s.Rows = append([]models.Row(nil), snap.Rows...)
	m.snaps[snap.UserID] = s
	return nil
}

func (m *memorySnapshots) ClearSnapshot(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, userID)
	return nil
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Append(ctx context.Context, e *models.JournalEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockJournal) ListByBooking(ctx context.Context, userID, bookingID string) ([]models.JournalEntry, error) {
	args := m.Called(ctx, userID, bookingID)
	entries, _ := args.Get(0).([]models.JournalEntry)
	return entries, args.Error(1)
}

func actionKinds(actions []models.Action) []models.ActionKind {
	out := make([]models.ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}
