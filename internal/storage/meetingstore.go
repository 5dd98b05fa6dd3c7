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

// MeetingFile is the top-level structure of meetings.yaml.
type MeetingFile struct {
	Version  string                    `yaml:"version"`
	Meetings map[string]models.Meeting `yaml:"meetings"`
}

// MeetingStore is the persistence collaborator for meetings. The
// completed-status write records attendees and outcomes in the same
// operation as the status change.
type MeetingStore interface {
	SaveMeeting(meeting models.Meeting) error
	GetMeeting(id string) (*models.Meeting, error)
	UpdateMeetingStatus(id string, status models.MeetingStatus, mutate func(*models.Meeting)) error
	ListMeetings(status models.MeetingStatus) ([]models.Meeting, error)
	Load() error
}

type fileMeetingStore struct {
	basePath string
	mu       sync.RWMutex
	data     MeetingFile
}

// NewMeetingStore creates a MeetingStore backed by meetings.yaml in the
// given base directory.
func NewMeetingStore(basePath string) MeetingStore {
	return &fileMeetingStore{
		basePath: basePath,
		data: MeetingFile{
			Version:  "1.0",
			Meetings: make(map[string]models.Meeting),
		},
	}
}

func (s *fileMeetingStore) filePath() string {
	return filepath.Join(s.basePath, "meetings.yaml")
}

func (s *fileMeetingStore) SaveMeeting(meeting models.Meeting) error {
	if meeting.ID == "" {
		return fmt.Errorf("saving meeting: ID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Meetings[meeting.ID] = meeting
	return s.save()
}

func (s *fileMeetingStore) GetMeeting(id string) (*models.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meeting, ok := s.data.Meetings[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "meeting", ID: id}
	}
	return &meeting, nil
}

// UpdateMeetingStatus writes the new status and applies mutate (which may
// record attendees, outcomes, or a start time) as one atomic store write.
func (s *fileMeetingStore) UpdateMeetingStatus(id string, status models.MeetingStatus, mutate func(*models.Meeting)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.data.Meetings[id]
	if !ok {
		return &models.NotFoundError{Kind: "meeting", ID: id}
	}
	meeting.Status = status
	meeting.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(&meeting)
	}
	s.data.Meetings[id] = meeting
	return s.save()
}

func (s *fileMeetingStore) ListMeetings(status models.MeetingStatus) ([]models.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Meeting
	for _, meeting := range s.data.Meetings {
		if status != "" && meeting.Status != status {
			continue
		}
		result = append(result, meeting)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledFor.Equal(result[j].ScheduledFor) {
			return result[i].ScheduledFor.Before(result[j].ScheduledFor)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *fileMeetingStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			s.data = MeetingFile{Version: "1.0", Meetings: make(map[string]models.Meeting)}
			return nil
		}
		return fmt.Errorf("loading meetings: %w", err)
	}

	var mf MeetingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("loading meetings: parsing YAML: %w", err)
	}
	if mf.Meetings == nil {
		mf.Meetings = make(map[string]models.Meeting)
	}
	s.data = mf
	return nil
}

// save writes the store to disk. Caller must hold s.mu.
func (s *fileMeetingStore) save() error {
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("saving meetings: creating directory: %w", err)
	}
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("saving meetings: marshaling YAML: %w", err)
	}
	if err := os.WriteFile(s.filePath(), data, 0o600); err != nil {
		return fmt.Errorf("saving meetings: writing file: %w", err)
	}
	return nil
}
