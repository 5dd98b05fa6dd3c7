package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/propelhq/propel/pkg/models"
)

// TicketFilter specifies criteria for listing tickets. All specified
// fields use AND logic.
type TicketFilter struct {
	Status   []models.TicketStatus
	Assignee string
	Creator  string
}

// TicketFile is the top-level structure of tickets.yaml.
type TicketFile struct {
	Version string                   `yaml:"version"`
	Tickets map[string]models.Ticket `yaml:"tickets"`
}

// TicketStore is the persistence collaborator for tickets. Mutations are
// write-through; every method returns a result rather than panicking.
type TicketStore interface {
	SaveTicket(ticket models.Ticket) error
	GetTicket(id string) (*models.Ticket, error)
	UpdateStatus(id string, status models.TicketStatus) error
	AssignTicket(id string, agentID string) error
	SetThread(id string, threadID string) error
	ListTickets(filter TicketFilter) ([]models.Ticket, error)
	Load() error
}

type fileTicketStore struct {
	basePath string
	mu       sync.RWMutex
	data     TicketFile
}

// NewTicketStore creates a TicketStore backed by tickets.yaml in the given
// base directory.
func NewTicketStore(basePath string) TicketStore {
	return &fileTicketStore{
		basePath: basePath,
		data: TicketFile{
			Version: "1.0",
			Tickets: make(map[string]models.Ticket),
		},
	}
}

func (s *fileTicketStore) filePath() string {
	return filepath.Join(s.basePath, "tickets.yaml")
}

func (s *fileTicketStore) SaveTicket(ticket models.Ticket) error {
	if ticket.ID == "" {
		return fmt.Errorf("saving ticket: ID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Tickets[ticket.ID] = ticket
	return s.save()
}

func (s *fileTicketStore) GetTicket(id string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.data.Tickets[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "ticket", ID: id}
	}
	return &ticket, nil
}

func (s *fileTicketStore) UpdateStatus(id string, status models.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.data.Tickets[id]
	if !ok {
		return &models.NotFoundError{Kind: "ticket", ID: id}
	}
	ticket.Status = status
	ticket.UpdatedAt = time.Now().UTC()
	s.data.Tickets[id] = ticket
	return s.save()
}

func (s *fileTicketStore) AssignTicket(id string, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.data.Tickets[id]
	if !ok {
		return &models.NotFoundError{Kind: "ticket", ID: id}
	}
	ticket.AssignedAgentID = agentID
	ticket.UpdatedAt = time.Now().UTC()
	s.data.Tickets[id] = ticket
	return s.save()
}

func (s *fileTicketStore) SetThread(id string, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.data.Tickets[id]
	if !ok {
		return &models.NotFoundError{Kind: "ticket", ID: id}
	}
	ticket.ThreadID = threadID
	s.data.Tickets[id] = ticket
	return s.save()
}

func (s *fileTicketStore) ListTickets(filter TicketFilter) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Ticket
	for _, ticket := range s.data.Tickets {
		if matchesTicketFilter(ticket, filter) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func matchesTicketFilter(ticket models.Ticket, filter TicketFilter) bool {
	if len(filter.Status) > 0 && !containsTicketStatus(filter.Status, ticket.Status) {
		return false
	}
	if filter.Assignee != "" && ticket.AssignedAgentID != filter.Assignee {
		return false
	}
	if filter.Creator != "" && ticket.CreatedByAgentID != filter.Creator {
		return false
	}
	return true
}

func containsTicketStatus(haystack []models.TicketStatus, needle models.TicketStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func (s *fileTicketStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			s.data = TicketFile{Version: "1.0", Tickets: make(map[string]models.Ticket)}
			return nil
		}
		return fmt.Errorf("loading tickets: %w", err)
	}

	var tf TicketFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("loading tickets: parsing YAML: %w", err)
	}
	if tf.Tickets == nil {
		tf.Tickets = make(map[string]models.Ticket)
	}
	s.data = tf
	return nil
}

// save writes the store to disk. Caller must hold s.mu.
func (s *fileTicketStore) save() error {
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("saving tickets: creating directory: %w", err)
	}
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("saving tickets: marshaling YAML: %w", err)
	}
	if err := os.WriteFile(s.filePath(), data, 0o600); err != nil {
		return fmt.Errorf("saving tickets: writing file: %w", err)
	}
	return nil
}
