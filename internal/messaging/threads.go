// Package messaging manages discussion threads between agents and
// humans. Threads are attached to tickets or meetings; escalating one
// parks it until a human reply reopens it.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/propelhq/propel/pkg/models"
)

// Publisher is the slice of the event bus the thread manager needs to
// announce messages and human escalations.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// ThreadManager manages discussion threads.
type ThreadManager interface {
	CreateThread(ctx context.Context, topic, ticketID string, participants []string) (*models.Thread, error)
	GetThread(id string) (*models.Thread, error)
	ListThreads(state models.ThreadState) ([]models.Thread, error)
	PostMessage(ctx context.Context, threadID string, author models.EventSource, body string) (*models.Message, error)
	EscalateToHuman(ctx context.Context, threadID, reason string) error
	ReopenThread(ctx context.Context, threadID string) error
	ResolveThread(ctx context.Context, threadID string) error
	Load() error
}

// ThreadFile is the on-disk representation of all threads.
type ThreadFile struct {
	Version string                   `yaml:"version"`
	Threads map[string]models.Thread `yaml:"threads"`
}

type fileThreadManager struct {
	mu       sync.RWMutex
	basePath string
	file     ThreadFile
	bus      Publisher
	logger   *slog.Logger
}

// NewThreadManager creates a ThreadManager storing threads in
// threads.yaml under basePath. Events for posted messages and human
// escalations are published on bus; a nil bus disables publishing.
func NewThreadManager(basePath string, bus Publisher) ThreadManager {
	return &fileThreadManager{
		basePath: basePath,
		bus:      bus,
		logger:   slog.Default(),
		file: ThreadFile{
			Version: "1.0",
			Threads: make(map[string]models.Thread),
		},
	}
}

func (m *fileThreadManager) path() string {
	return filepath.Join(m.basePath, "threads.yaml")
}

// Load reads the thread file from disk. A missing file leaves the
// manager empty.
func (m *fileThreadManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("loading threads: %w", err)
	}

	var file ThreadFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("loading threads: parsing yaml: %w", err)
	}
	if file.Threads == nil {
		file.Threads = make(map[string]models.Thread)
	}
	m.file = file
	return nil
}

// save writes the thread file. Callers must hold m.mu.
func (m *fileThreadManager) save() error {
	if err := os.MkdirAll(m.basePath, 0o750); err != nil {
		return fmt.Errorf("saving threads: creating directory: %w", err)
	}
	data, err := yaml.Marshal(m.file)
	if err != nil {
		return fmt.Errorf("saving threads: marshaling yaml: %w", err)
	}
	if err := os.WriteFile(m.path(), data, 0o600); err != nil {
		return fmt.Errorf("saving threads: writing file: %w", err)
	}
	return nil
}

func (m *fileThreadManager) CreateThread(ctx context.Context, topic, ticketID string, participants []string) (*models.Thread, error) {
	if topic == "" {
		return nil, &models.ValidationError{Field: "topic", Reason: "must not be empty"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	thread := models.Thread{
		ID:           uuid.NewString(),
		Topic:        topic,
		TicketID:     ticketID,
		State:        models.ThreadOpen,
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.file.Threads[thread.ID] = thread
	if err := m.save(); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (m *fileThreadManager) GetThread(id string) (*models.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	thread, ok := m.file.Threads[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "thread", ID: id}
	}
	return &thread, nil
}

func (m *fileThreadManager) ListThreads(state models.ThreadState) ([]models.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var threads []models.Thread
	for _, thread := range m.file.Threads {
		if state != "" && thread.State != state {
			continue
		}
		threads = append(threads, thread)
	}
	sort.Slice(threads, func(i, j int) bool {
		if !threads[i].CreatedAt.Equal(threads[j].CreatedAt) {
			return threads[i].CreatedAt.Before(threads[j].CreatedAt)
		}
		return threads[i].ID < threads[j].ID
	})
	return threads, nil
}

func (m *fileThreadManager) PostMessage(ctx context.Context, threadID string, author models.EventSource, body string) (*models.Message, error) {
	if body == "" {
		return nil, &models.ValidationError{Field: "body", Reason: "must not be empty"}
	}

	m.mu.Lock()
	thread, ok := m.file.Threads[threadID]
	if !ok {
		m.mu.Unlock()
		return nil, &models.NotFoundError{Kind: "thread", ID: threadID}
	}
	if thread.State == models.ThreadWaitingForHuman && author.Kind != models.SourceHuman {
		m.mu.Unlock()
		return nil, &models.ValidationError{Field: "author", Reason: "thread is waiting for a human reply"}
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	thread.Messages = append(thread.Messages, msg)
	// A human reply reopens a parked thread.
	if thread.State == models.ThreadWaitingForHuman && author.Kind == models.SourceHuman {
		thread.State = models.ThreadOpen
	}
	thread.UpdatedAt = msg.CreatedAt
	m.file.Threads[threadID] = thread
	if err := m.save(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	m.publish(ctx, models.Event{
		Source:  author,
		Type:    models.EventMessagePosted,
		Payload: models.MarshalPayload(map[string]string{"thread_id": threadID, "message_id": msg.ID}),
	})
	return &msg, nil
}

func (m *fileThreadManager) EscalateToHuman(ctx context.Context, threadID, reason string) error {
	m.mu.Lock()
	thread, ok := m.file.Threads[threadID]
	if !ok {
		m.mu.Unlock()
		return &models.NotFoundError{Kind: "thread", ID: threadID}
	}
	if thread.State != models.ThreadOpen {
		m.mu.Unlock()
		return &models.ValidationError{Field: "state", Reason: fmt.Sprintf("cannot escalate thread in state %s", thread.State)}
	}
	thread.State = models.ThreadWaitingForHuman
	thread.UpdatedAt = time.Now().UTC()
	m.file.Threads[threadID] = thread
	if err := m.save(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.publish(ctx, models.Event{
		Source:  models.HumanSource(),
		Urgency: models.UrgencyHigh,
		Type:    models.EventNotification,
		Payload: models.MarshalPayload(map[string]string{"thread_id": threadID, "reason": reason}),
	})
	return nil
}

func (m *fileThreadManager) ReopenThread(ctx context.Context, threadID string) error {
	return m.setState(threadID, models.ThreadWaitingForHuman, models.ThreadOpen)
}

func (m *fileThreadManager) ResolveThread(ctx context.Context, threadID string) error {
	return m.setState(threadID, "", models.ThreadResolved)
}

// setState moves a thread to a new state. A non-empty expect restricts
// the transition to threads currently in that state.
func (m *fileThreadManager) setState(threadID string, expect, next models.ThreadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread, ok := m.file.Threads[threadID]
	if !ok {
		return &models.NotFoundError{Kind: "thread", ID: threadID}
	}
	if expect != "" && thread.State != expect {
		return &models.ValidationError{Field: "state", Reason: fmt.Sprintf("thread is %s, expected %s", thread.State, expect)}
	}
	thread.State = next
	thread.UpdatedAt = time.Now().UTC()
	m.file.Threads[threadID] = thread
	return m.save()
}

func (m *fileThreadManager) publish(ctx context.Context, event models.Event) {
	if m.bus == nil {
		return
	}
	// Thread state is already persisted; a publish failure must not
	// undo it.
	if err := m.bus.Publish(ctx, event); err != nil {
		m.logger.Warn("publishing thread event", "type", event.Type, "error", err)
	}
}
