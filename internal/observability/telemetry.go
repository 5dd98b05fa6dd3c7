// Package observability records structured telemetry about event flow.
// The sink is an append-only JSONL file: one record per publish,
// delivery drop, or delivery error, each carrying the event's type, id,
// timestamp, and source.
package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

// Record is a single telemetry line.
type Record struct {
	Time      time.Time `json:"time"`
	Op        string    `json:"op"` // e.g. "publish", "delivery_drop", "delivery_error"
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	EventTime time.Time `json:"event_time"`
	Source    string    `json:"source"`
	Detail    string    `json:"detail,omitempty"`
}

// RecordFilter specifies criteria for reading records back.
type RecordFilter struct {
	Since *time.Time
	Until *time.Time
	Op    string
}

// Sink defines the interface for writing and reading telemetry.
type Sink interface {
	Record(op string, event models.Event, detail string)
	Read(filter RecordFilter) ([]Record, error)
	Close() error
}

// jsonlSink implements Sink using an append-only JSONL file.
type jsonlSink struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLSink creates a Sink backed by a JSONL file at the given path.
func NewJSONLSink(path string) (Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry sink: %w", err)
	}
	return &jsonlSink{path: path, file: f}, nil
}

// Record appends one JSON-encoded line to the sink. Telemetry is best
// effort: write failures are swallowed so the bus never stalls on its
// own instrumentation.
func (s *jsonlSink) Record(op string, event models.Event, detail string) {
	record := Record{
		Time:      time.Now().UTC(),
		Op:        op,
		EventType: string(event.Type),
		EventID:   event.ID,
		EventTime: event.Timestamp,
		Source:    event.Source.String(),
		Detail:    detail,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.file.Write(data)
}

// Read opens the sink file, scans line by line, decodes each record, and
// returns those matching the filter.
func (s *jsonlSink) Read(filter RecordFilter) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening telemetry sink for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			continue // skip malformed lines
		}
		if matchesRecordFilter(record, filter) {
			records = append(records, record)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning telemetry sink: %w", err)
	}
	return records, nil
}

// Close closes the underlying file.
func (s *jsonlSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing telemetry sink: %w", err)
	}
	return nil
}

// matchesRecordFilter checks whether a record satisfies all filter
// criteria.
func matchesRecordFilter(record Record, filter RecordFilter) bool {
	if filter.Since != nil && record.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && record.Time.After(*filter.Until) {
		return false
	}
	if filter.Op != "" && record.Op != filter.Op {
		return false
	}
	return true
}
