package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

// In-memory collaborator fakes shared by the core tests. Each fake keeps
// a call log so tests can assert on ordering across collaborators.

type memTicketStore struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket
	order   []string
}

func newMemTicketStore() *memTicketStore {
	return &memTicketStore{tickets: make(map[string]models.Ticket)}
}

func (s *memTicketStore) SaveTicket(ticket models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; !ok {
		s.order = append(s.order, ticket.ID)
	}
	s.tickets[ticket.ID] = ticket
	return nil
}

func (s *memTicketStore) GetTicket(id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "ticket", ID: id}
	}
	return &ticket, nil
}

func (s *memTicketStore) UpdateStatus(id string, status models.TicketStatus) error {
	return s.mutate(id, func(t *models.Ticket) { t.Status = status })
}

func (s *memTicketStore) AssignTicket(id string, agentID string) error {
	return s.mutate(id, func(t *models.Ticket) { t.AssignedAgentID = agentID })
}

func (s *memTicketStore) SetThread(id string, threadID string) error {
	return s.mutate(id, func(t *models.Ticket) { t.ThreadID = threadID })
}

func (s *memTicketStore) mutate(id string, fn func(*models.Ticket)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return &models.NotFoundError{Kind: "ticket", ID: id}
	}
	fn(&ticket)
	ticket.UpdatedAt = time.Now().UTC()
	s.tickets[id] = ticket
	return nil
}

func (s *memTicketStore) ListTickets(filter storage.TicketFilter) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Ticket
	for _, id := range s.order {
		t := s.tickets[id]
		if len(filter.Status) > 0 {
			match := false
			for _, st := range filter.Status {
				if t.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filter.Assignee != "" && t.AssignedAgentID != filter.Assignee {
			continue
		}
		if filter.Creator != "" && t.CreatedByAgentID != filter.Creator {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (s *memTicketStore) Load() error { return nil }

type memMeetingStore struct {
	mu       sync.Mutex
	meetings map[string]models.Meeting
	saveErr  error
}

func newMemMeetingStore() *memMeetingStore {
	return &memMeetingStore{meetings: make(map[string]models.Meeting)}
}

func (s *memMeetingStore) SaveMeeting(meeting models.Meeting) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[meeting.ID] = meeting
	return nil
}

func (s *memMeetingStore) GetMeeting(id string) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "meeting", ID: id}
	}
	return &meeting, nil
}

func (s *memMeetingStore) UpdateMeetingStatus(id string, status models.MeetingStatus, mutate func(*models.Meeting)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return &models.NotFoundError{Kind: "meeting", ID: id}
	}
	meeting.Status = status
	if mutate != nil {
		mutate(&meeting)
	}
	meeting.UpdatedAt = time.Now().UTC()
	s.meetings[id] = meeting
	return nil
}

func (s *memMeetingStore) ListMeetings(status models.MeetingStatus) ([]models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Meeting
	for _, m := range s.meetings {
		if status != "" && m.Status != status {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (s *memMeetingStore) Load() error { return nil }

// recordingThreads implements messaging.ThreadManager with an ordered
// call log of the shape "op:threadID:detail".
type recordingThreads struct {
	mu      sync.Mutex
	calls   []string
	threads map[string]*models.Thread
}

func newRecordingThreads() *recordingThreads {
	return &recordingThreads{threads: make(map[string]*models.Thread)}
}

func (r *recordingThreads) log(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recordingThreads) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingThreads) CreateThread(_ context.Context, topic, ticketID string, participants []string) (*models.Thread, error) {
	thread := &models.Thread{
		ID:           uuid.NewString(),
		Topic:        topic,
		TicketID:     ticketID,
		State:        models.ThreadOpen,
		Participants: participants,
	}
	r.mu.Lock()
	r.threads[thread.ID] = thread
	r.mu.Unlock()
	r.log("create:%s:%s", thread.ID, topic)
	return thread, nil
}

func (r *recordingThreads) GetThread(id string) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "thread", ID: id}
	}
	return thread, nil
}

func (r *recordingThreads) ListThreads(models.ThreadState) ([]models.Thread, error) {
	return nil, nil
}

func (r *recordingThreads) PostMessage(_ context.Context, threadID string, author models.EventSource, body string) (*models.Message, error) {
	r.log("post:%s:%s", threadID, body)
	return &models.Message{ID: uuid.NewString(), Author: author, Body: body}, nil
}

func (r *recordingThreads) EscalateToHuman(_ context.Context, threadID, reason string) error {
	r.log("escalate:%s:%s", threadID, reason)
	return nil
}

func (r *recordingThreads) ReopenThread(_ context.Context, threadID string) error {
	r.log("reopen:%s:", threadID)
	return nil
}

func (r *recordingThreads) ResolveThread(_ context.Context, threadID string) error {
	r.log("resolve:%s:", threadID)
	return nil
}

func (r *recordingThreads) Load() error { return nil }

// recordingBus implements Publisher and keeps every published event.
type recordingBus struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *recordingBus) Publish(_ context.Context, event models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) byType(eventType models.EventType) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []models.Event
	for _, e := range b.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

type memKnowledgeStore struct {
	mu      sync.Mutex
	entries []models.Knowledge
}

func (s *memKnowledgeStore) StoreKnowledge(entry models.Knowledge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memKnowledgeStore) GetKnowledge(id string) (*models.Knowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			return &s.entries[i], nil
		}
	}
	return nil, &models.NotFoundError{Kind: "knowledge", ID: id}
}

func (s *memKnowledgeStore) QueryKnowledge(tags []string, taskType string) ([]models.Knowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(tags) == 0 && taskType == "" {
		return append([]models.Knowledge(nil), s.entries...), nil
	}
	var result []models.Knowledge
	for _, entry := range s.entries {
		if taskType != "" && entry.TaskType == taskType {
			result = append(result, entry)
			continue
		}
		for _, tag := range tags {
			if containsString(entry.Tags, tag) {
				result = append(result, entry)
				break
			}
		}
	}
	return result, nil
}

func (s *memKnowledgeStore) AllKnowledge() ([]models.Knowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Knowledge(nil), s.entries...), nil
}

func (s *memKnowledgeStore) Load() error { return nil }

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// scriptReasoner implements reasoning.Reasoner with pluggable behavior.
type scriptReasoner struct {
	evaluate func(ctx context.Context, p models.Perception) ([]models.Idea, error)
	plan     func(ctx context.Context, item models.WorkItem) (*models.Plan, error)
	tool     func(ctx context.Context, task models.PlanTask) (string, error)
}

func (r *scriptReasoner) EvaluatePerception(ctx context.Context, p models.Perception) ([]models.Idea, error) {
	if r.evaluate == nil {
		return nil, nil
	}
	return r.evaluate(ctx, p)
}

func (r *scriptReasoner) GeneratePlan(ctx context.Context, item models.WorkItem) (*models.Plan, error) {
	if r.plan == nil {
		return &models.Plan{ID: uuid.NewString(), TicketID: item.Ticket.ID}, nil
	}
	return r.plan(ctx, item)
}

func (r *scriptReasoner) ExecuteTool(ctx context.Context, task models.PlanTask) (string, error) {
	if r.tool == nil {
		return "", nil
	}
	return r.tool(ctx, task)
}
