package events

import (
	"encoding/json"
	"sync"
	"time"

	"dnakit/internal/models"
)

const (
	EventBookingCheckedIn = "booking_checked_in"
	EventKitReceived      = "kit_received"
	EventKitShipped       = "kit_shipped"
	EventBookingCancelled = "booking_cancelled"
	EventKitCreated       = "kit_created"
	EventKitStatusChanged = "kit_status_changed"
)

// ActionEvents lists every event type carrying an ActionEventPayload.
var ActionEvents = []string{
	EventBookingCheckedIn,
	EventKitReceived,
	EventKitShipped,
	EventBookingCancelled,
	EventKitCreated,
	EventKitStatusChanged,
}

// EventTypeFor maps an action to the event published for its outcomes.
func EventTypeFor(kind models.ActionKind) string {
	switch kind {
	case models.ActionCheckIn:
		return EventBookingCheckedIn
	case models.ActionReceiveKit:
		return EventKitReceived
	case models.ActionShipKit:
		return EventKitShipped
	case models.ActionCancel:
		return EventBookingCancelled
	case models.ActionCreateKit:
		return EventKitCreated
	case models.ActionSetKitStatus:
		return EventKitStatusChanged
	default:
		return string(kind)
	}
}

// ActionEventPayload is published for every action attempt, whatever its
// outcome.
type ActionEventPayload struct {
	UserID     string            `json:"user_id"`
	BookingID  string            `json:"booking_id"`
	KitID      string            `json:"kit_id,omitempty"`
	Action     models.ActionKind `json:"action"`
	Resource   string            `json:"resource"`
	FromStatus string            `json:"from_status"`
	ToStatus   string            `json:"to_status"`
	Outcome    string            `json:"outcome"`
	Error      string            `json:"error,omitempty"`
	At         time.Time         `json:"at"`
}

// Entry converts the payload into a journal row.
func (p ActionEventPayload) Entry() *models.JournalEntry {
	return &models.JournalEntry{
		UserID:     p.UserID,
		BookingID:  p.BookingID,
		KitID:      p.KitID,
		Action:     p.Action,
		Resource:   p.Resource,
		FromStatus: p.FromStatus,
		ToStatus:   p.ToStatus,
		Outcome:    p.Outcome,
		Error:      p.Error,
		CreatedAt:  p.At,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(event *Event, err error)
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// OnError sets the callback for handler failures.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
