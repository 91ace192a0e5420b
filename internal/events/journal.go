package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dnakit/internal/domain"
	"dnakit/internal/metrics"
)

const journalWriteTimeout = 5 * time.Second

// SubscribeJournal records every action event in the journal and counts
// it in metrics. Failed writes are retried per retry.
func SubscribeJournal(bus *EventBus, journal domain.Journal, retry RetryPolicy) {
	handler := func(event *Event) error {
		var payload ActionEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.Type, err)
		}
		if payload.At.IsZero() {
			payload.At = event.CreatedAt
		}

		metrics.IncAction(string(payload.Action), payload.Outcome)

		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()
		entry := payload.Entry()
		return retry.Do(ctx, func(ctx context.Context) error {
			return journal.Append(ctx, entry)
		})
	}

	for _, eventType := range ActionEvents {
		bus.Subscribe(eventType, handler)
	}
}
