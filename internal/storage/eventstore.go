package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/propelhq/propel/pkg/models"
)

const eventsDBName = "events.db"

// eventTSLayout is a fixed-width UTC timestamp layout. The range query
// compares ts columns lexicographically, so the fractional part must
// never vary in length the way RFC3339Nano's does.
const eventTSLayout = "2006-01-02T15:04:05.000000000Z"

// eventsSchema is applied on open. The rowid is the insertion-order
// tie-breaker for replay.
const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT NOT NULL UNIQUE,
	ts          TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	source_agent TEXT,
	urgency     TEXT NOT NULL,
	type        TEXT NOT NULL,
	payload     TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// SQLiteEventStore is the durable event log backing bus publish and
// replay. Range queries return events ascending by timestamp with ties
// broken by insertion order.
type SQLiteEventStore struct {
	db *sql.DB
}

// OpenEventStore opens (creating if needed) the SQLite event log under
// the given base directory.
func OpenEventStore(basePath string) (*SQLiteEventStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("opening event store: creating directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared", filepath.Join(basePath, eventsDBName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening event store: applying schema: %w", err)
	}
	return &SQLiteEventStore{db: db}, nil
}

// SaveEvent appends one event to the log.
func (s *SQLiteEventStore) SaveEvent(ctx context.Context, event models.Event) error {
	payload := ""
	if len(event.Payload) > 0 {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(id, ts, source_kind, source_agent, urgency, type, payload) VALUES (?,?,?,?,?,?,?)`,
		event.ID,
		event.Timestamp.UTC().Format(eventTSLayout),
		string(event.Source.Kind),
		nullable(event.Source.AgentID),
		string(event.Urgency),
		string(event.Type),
		nullable(payload),
	)
	if err != nil {
		return fmt.Errorf("saving event %s: %w", event.ID, err)
	}
	return nil
}

// QueryEventsInRange returns events with from <= ts <= to, ascending by
// timestamp, ties in insertion (rowid) order.
func (s *SQLiteEventStore) QueryEventsInRange(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, source_kind, source_agent, urgency, type, payload
		 FROM events WHERE ts >= ? AND ts <= ? ORDER BY ts ASC, rowid ASC`,
		from.UTC().Format(eventTSLayout),
		to.UTC().Format(eventTSLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return events, nil
}

// TailEvents returns the most recent n events in insertion order.
func (s *SQLiteEventStore) TailEvents(ctx context.Context, n int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, source_kind, source_agent, urgency, type, payload FROM
		 (SELECT rowid, * FROM events ORDER BY rowid DESC LIMIT ?) ORDER BY rowid ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("tailing events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tailing events: %w", err)
	}
	return events, nil
}

// Close closes the underlying database handle.
func (s *SQLiteEventStore) Close() error {
	return s.db.Close()
}

func scanEvent(rows *sql.Rows) (models.Event, error) {
	var (
		event       models.Event
		ts          string
		sourceKind  string
		sourceAgent sql.NullString
		urgency     string
		eventType   string
		payload     sql.NullString
	)
	if err := rows.Scan(&event.ID, &ts, &sourceKind, &sourceAgent, &urgency, &eventType, &payload); err != nil {
		return models.Event{}, fmt.Errorf("scanning event row: %w", err)
	}
	parsed, err := time.Parse(eventTSLayout, ts)
	if err != nil {
		return models.Event{}, fmt.Errorf("parsing event timestamp %q: %w", ts, err)
	}
	event.Timestamp = parsed
	event.Source = models.EventSource{Kind: models.SourceKind(sourceKind), AgentID: sourceAgent.String}
	event.Urgency = models.Urgency(urgency)
	event.Type = models.EventType(eventType)
	if payload.Valid && payload.String != "" {
		event.Payload = json.RawMessage(payload.String)
	}
	return event, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
