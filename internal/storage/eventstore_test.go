package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

func openTestEventStore(t *testing.T) *SQLiteEventStore {
	t.Helper()
	store, err := OpenEventStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenEventStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func storedEvent(id string, ts time.Time) models.Event {
	return models.Event{
		ID:        id,
		Type:      models.EventTicketCreated,
		Source:    models.AgentSource("builder"),
		Urgency:   models.UrgencyMedium,
		Timestamp: ts,
		Payload:   json.RawMessage(`{"ticket_id":"t-1"}`),
	}
}

func TestEventStoreSaveAndQueryRange(t *testing.T) {
	store := openTestEventStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		event := storedEvent(fmt.Sprintf("e-%d", i), base.Add(time.Duration(i)*time.Second))
		if err := store.SaveEvent(ctx, event); err != nil {
			t.Fatalf("SaveEvent(e-%d) error = %v", i, err)
		}
	}

	// The window is inclusive at both ends.
	events, err := store.QueryEventsInRange(ctx, base.Add(time.Second), base.Add(3*time.Second))
	if err != nil {
		t.Fatalf("QueryEventsInRange() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{"e-1", "e-2", "e-3"} {
		if events[i].ID != want {
			t.Errorf("events[%d] = %s, want %s", i, events[i].ID, want)
		}
	}
}

func TestEventStoreRoundTripsEnvelope(t *testing.T) {
	store := openTestEventStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.SaveEvent(ctx, storedEvent("e-1", ts)); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}
	events, err := store.QueryEventsInRange(ctx, ts, ts)
	if err != nil {
		t.Fatalf("QueryEventsInRange() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	got := events[0]
	if got.Type != models.EventTicketCreated || got.Urgency != models.UrgencyMedium {
		t.Errorf("envelope = %+v", got)
	}
	if got.Source.Kind != models.SourceAgent || got.Source.AgentID != "builder" {
		t.Errorf("source = %+v", got.Source)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %s, want %s", got.Timestamp, ts)
	}
	var payload map[string]string
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("payload did not round-trip: %v", err)
	}
	if payload["ticket_id"] != "t-1" {
		t.Errorf("payload = %v", payload)
	}
}

func TestEventStoreRangeIncludesSubSecondTimestamps(t *testing.T) {
	store := openTestEventStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Fractions of varying precision must sort chronologically against
	// whole-second bounds.
	stamps := []time.Time{
		base.Add(500 * time.Millisecond),
		base.Add(time.Nanosecond),
		base.Add(30 * time.Second),
	}
	for i, ts := range stamps {
		if err := store.SaveEvent(ctx, storedEvent(fmt.Sprintf("e-%d", i), ts)); err != nil {
			t.Fatalf("SaveEvent(e-%d) error = %v", i, err)
		}
	}

	events, err := store.QueryEventsInRange(ctx, base, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("QueryEventsInRange() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{"e-1", "e-0", "e-2"} {
		if events[i].ID != want {
			t.Errorf("events[%d] = %s, want %s", i, events[i].ID, want)
		}
	}
}

func TestEventStoreEqualTimestampsKeepInsertionOrder(t *testing.T) {
	store := openTestEventStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"first", "second", "third"} {
		if err := store.SaveEvent(ctx, storedEvent(id, ts)); err != nil {
			t.Fatalf("SaveEvent(%s) error = %v", id, err)
		}
	}
	events, err := store.QueryEventsInRange(ctx, ts, ts)
	if err != nil {
		t.Fatalf("QueryEventsInRange() error = %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if events[i].ID != want {
			t.Errorf("events[%d] = %s, want %s", i, events[i].ID, want)
		}
	}
}

func TestEventStoreRejectsDuplicateID(t *testing.T) {
	store := openTestEventStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	if err := store.SaveEvent(ctx, storedEvent("e-1", ts)); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}
	if err := store.SaveEvent(ctx, storedEvent("e-1", ts)); err == nil {
		t.Error("SaveEvent() accepted a duplicate event ID")
	}
}

func TestEventStoreTail(t *testing.T) {
	store := openTestEventStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if err := store.SaveEvent(ctx, storedEvent(fmt.Sprintf("e-%d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("SaveEvent(e-%d) error = %v", i, err)
		}
	}

	tail, err := store.TailEvents(ctx, 3)
	if err != nil {
		t.Fatalf("TailEvents() error = %v", err)
	}
	if len(tail) != 3 {
		t.Fatalf("got %d events, want 3", len(tail))
	}
	for i, want := range []string{"e-7", "e-8", "e-9"} {
		if tail[i].ID != want {
			t.Errorf("tail[%d] = %s, want %s", i, tail[i].ID, want)
		}
	}

	// Asking for more than exists returns everything.
	all, _ := store.TailEvents(ctx, 100)
	if len(all) != 10 {
		t.Errorf("tail(100) returned %d events, want 10", len(all))
	}
}

func TestEventStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store, err := OpenEventStore(dir)
	if err != nil {
		t.Fatalf("OpenEventStore() error = %v", err)
	}
	if err := store.SaveEvent(ctx, storedEvent("e-1", ts)); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenEventStore(dir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	events, err := reopened.QueryEventsInRange(ctx, ts, ts)
	if err != nil {
		t.Fatalf("QueryEventsInRange() after reopen error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events after reopen, want 1", len(events))
	}
}
