package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propelhq/propel/pkg/models"
)

// EventStore is the persistence collaborator the bus appends every
// published event to. Defining it here keeps the bus independent of the
// storage package.
type EventStore interface {
	SaveEvent(ctx context.Context, event models.Event) error
	QueryEventsInRange(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

// Telemetry receives structured records of bus activity for the
// observability sink. Implementations must not block.
type Telemetry interface {
	Record(op string, event models.Event, detail string)
}

// subscriberBuffer is the per-subscription channel depth. A subscriber that
// falls further behind than this has events dropped rather than stalling
// fan-out for everyone else.
const subscriberBuffer = 64

// Subscription is a live, order-preserving stream of matching events.
type Subscription struct {
	id     uint64
	name   string
	filter Filter
	ch     chan models.Event
	bus    *Bus
	once   sync.Once
}

// Events returns the channel events are delivered on. The channel is
// closed when the subscription or the bus is closed.
func (s *Subscription) Events() <-chan models.Event { return s.ch }

// Close detaches the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.bus.removeSubscription(s.id)
	s.once.Do(func() { close(s.ch) })
}

// Bus is the in-process publish/subscribe/replay router. Publishes from
// concurrent producers are serialized through a single queue before
// fan-out, so every subscriber observes the same global order.
type Bus struct {
	store     EventStore
	telemetry Telemetry

	publishMu sync.Mutex
	queue     chan models.Event
	closed    bool

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64

	done chan struct{}
}

// New creates a Bus backed by the given event store and starts its fan-out
// goroutine. telemetry may be nil.
func New(store EventStore, telemetry Telemetry) *Bus {
	b := &Bus{
		store:     store,
		telemetry: telemetry,
		queue:     make(chan models.Event, 256),
		subs:      make(map[uint64]*Subscription),
		done:      make(chan struct{}),
	}
	go b.fanOut()
	return b
}

// Publish validates the event against the registry, appends it to the
// durable log, and enqueues it for ordered fan-out. Persist and enqueue
// happen under one lock so delivery order always equals persisted order.
func (b *Bus) Publish(ctx context.Context, event models.Event) error {
	if !Registered(event.Type) {
		return &models.ValidationError{Field: "event.type", Reason: fmt.Sprintf("%q is not a registered event type", event.Type)}
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Urgency == "" {
		event.Urgency = models.UrgencyMedium
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	if b.closed {
		return fmt.Errorf("publishing %s: bus is closed", event.Type)
	}
	if err := b.store.SaveEvent(ctx, event); err != nil {
		return &models.PersistenceError{Op: "save event", Err: err}
	}
	b.queue <- event

	slog.Debug("event published",
		"type", event.Type, "id", event.ID, "timestamp", event.Timestamp, "source", event.Source.String())
	b.record("publish", event, "")
	return nil
}

// Subscribe registers a live subscription. The name identifies the
// subscriber in logs and telemetry.
func (b *Bus) Subscribe(name string, filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		name:   name,
		filter: filter,
		ch:     make(chan models.Event, subscriberBuffer),
		bus:    b,
	}
	b.subs[sub.id] = sub
	slog.Debug("subscriber attached", "name", name, "id", sub.id)
	return sub
}

// SubscribeFunc registers a handler-backed subscription. The handler runs
// on its own goroutine; a panicking handler is recovered and logged, and
// the subscription keeps receiving future events.
func (b *Bus) SubscribeFunc(name string, filter Filter, handler func(models.Event)) *Subscription {
	sub := b.Subscribe(name, filter)
	go func() {
		for event := range sub.ch {
			b.deliver(name, event, handler)
		}
	}()
	return sub
}

// deliver invokes a handler with panic isolation.
func (b *Bus) deliver(name string, event models.Event, handler func(models.Event)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscriber handler panicked",
				"subscriber", name, "type", event.Type, "id", event.ID, "panic", r)
			b.record("delivery_error", event, fmt.Sprintf("subscriber %s panicked: %v", name, r))
		}
	}()
	handler(event)
}

// Replay returns persisted events with from <= timestamp <= to that match
// the filter, ascending by timestamp with ties broken by insertion order.
func (b *Bus) Replay(ctx context.Context, from, to time.Time, filter Filter) ([]models.Event, error) {
	stored, err := b.store.QueryEventsInRange(ctx, from, to)
	if err != nil {
		return nil, &models.PersistenceError{Op: "query events in range", Err: err}
	}

	var matched []models.Event
	for _, event := range stored {
		if filter.Matches(event) {
			matched = append(matched, event)
		}
	}
	// The store returns insertion order; a stable sort keeps that order
	// for equal timestamps.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched, nil
}

// Close stops fan-out and closes all subscription channels. Pending queued
// events are delivered first.
func (b *Bus) Close() {
	b.publishMu.Lock()
	if b.closed {
		b.publishMu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.publishMu.Unlock()

	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// fanOut is the single serialization point: one goroutine drains the queue
// and hands each event to every matching subscriber in turn. Sends happen
// under b.mu so a subscription cannot be detached mid-delivery.
func (b *Bus) fanOut() {
	defer close(b.done)
	for event := range b.queue {
		b.mu.Lock()
		subs := make([]*Subscription, 0, len(b.subs))
		for _, sub := range b.subs {
			subs = append(subs, sub)
		}
		sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
		for _, sub := range subs {
			if !sub.filter.Matches(event) {
				continue
			}
			select {
			case sub.ch <- event:
			default:
				// A full subscriber loses this event instead of
				// stalling delivery to everyone behind it.
				slog.Warn("subscriber lagging, event dropped",
					"subscriber", sub.name, "type", event.Type, "id", event.ID)
				b.record("delivery_drop", event, fmt.Sprintf("subscriber %s buffer full", sub.name))
			}
		}
		b.mu.Unlock()
	}
}

func (b *Bus) removeSubscription(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

func (b *Bus) record(op string, event models.Event, detail string) {
	if b.telemetry != nil {
		b.telemetry.Record(op, event, detail)
	}
}
