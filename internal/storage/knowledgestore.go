package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/propelhq/propel/pkg/models"
)

// KnowledgeFile is the top-level structure of knowledge.yaml. Entries is
// an append-only log: insertion order is preserved on disk and after Load,
// which is what recall tie-breaking depends on.
type KnowledgeFile struct {
	Version string             `yaml:"version"`
	Entries []models.Knowledge `yaml:"entries"`
}

// KnowledgeStore is the persistence collaborator for the knowledge memory.
// Writes are append-only; entries are never mutated, only superseded by
// newer ones.
type KnowledgeStore interface {
	StoreKnowledge(entry models.Knowledge) error
	GetKnowledge(id string) (*models.Knowledge, error)
	// QueryKnowledge returns candidates matching any of the tags or the
	// task type, in insertion order. Empty criteria return everything.
	QueryKnowledge(tags []string, taskType string) ([]models.Knowledge, error)
	AllKnowledge() ([]models.Knowledge, error)
	Load() error
}

type fileKnowledgeStore struct {
	basePath string
	mu       sync.RWMutex
	data     KnowledgeFile

	// Secondary indexes over the entry log, positions into data.Entries.
	byTag  map[string][]int
	byType map[string][]int
}

// NewKnowledgeStore creates a KnowledgeStore backed by knowledge.yaml in
// the given base directory.
func NewKnowledgeStore(basePath string) KnowledgeStore {
	return &fileKnowledgeStore{
		basePath: basePath,
		data:     KnowledgeFile{Version: "1.0"},
		byTag:    make(map[string][]int),
		byType:   make(map[string][]int),
	}
}

func (s *fileKnowledgeStore) filePath() string {
	return filepath.Join(s.basePath, "knowledge.yaml")
}

func (s *fileKnowledgeStore) StoreKnowledge(entry models.Knowledge) error {
	if entry.ID == "" {
		return fmt.Errorf("storing knowledge: ID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Entries {
		if existing.ID == entry.ID {
			return fmt.Errorf("storing knowledge: %s already exists", entry.ID)
		}
	}
	s.data.Entries = append(s.data.Entries, entry)
	s.index(len(s.data.Entries) - 1)
	return s.save()
}

func (s *fileKnowledgeStore) GetKnowledge(id string) (*models.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.data.Entries {
		if entry.ID == id {
			return &entry, nil
		}
	}
	return nil, &models.NotFoundError{Kind: "knowledge", ID: id}
}

func (s *fileKnowledgeStore) QueryKnowledge(tags []string, taskType string) ([]models.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(tags) == 0 && taskType == "" {
		return s.copyAll(), nil
	}

	seen := make(map[int]struct{})
	var positions []int
	for _, tag := range tags {
		for _, pos := range s.byTag[strings.ToLower(tag)] {
			if _, ok := seen[pos]; !ok {
				seen[pos] = struct{}{}
				positions = append(positions, pos)
			}
		}
	}
	if taskType != "" {
		for _, pos := range s.byType[strings.ToLower(taskType)] {
			if _, ok := seen[pos]; !ok {
				seen[pos] = struct{}{}
				positions = append(positions, pos)
			}
		}
	}

	// Restore insertion order across the merged index hits.
	sort.Ints(positions)
	result := make([]models.Knowledge, 0, len(positions))
	for _, pos := range positions {
		result = append(result, s.data.Entries[pos])
	}
	return result, nil
}

func (s *fileKnowledgeStore) AllKnowledge() ([]models.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAll(), nil
}

// copyAll returns the entries in insertion order. Caller must hold s.mu.
func (s *fileKnowledgeStore) copyAll() []models.Knowledge {
	result := make([]models.Knowledge, len(s.data.Entries))
	copy(result, s.data.Entries)
	return result
}

// index adds one entry position to the secondary indexes. Caller must
// hold s.mu.
func (s *fileKnowledgeStore) index(pos int) {
	entry := s.data.Entries[pos]
	for _, tag := range entry.Tags {
		key := strings.ToLower(tag)
		s.byTag[key] = append(s.byTag[key], pos)
	}
	if entry.TaskType != "" {
		key := strings.ToLower(entry.TaskType)
		s.byType[key] = append(s.byType[key], pos)
	}
}

func (s *fileKnowledgeStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			s.data = KnowledgeFile{Version: "1.0"}
			s.byTag = make(map[string][]int)
			s.byType = make(map[string][]int)
			return nil
		}
		return fmt.Errorf("loading knowledge: %w", err)
	}

	var kf KnowledgeFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return fmt.Errorf("loading knowledge: parsing YAML: %w", err)
	}
	s.data = kf
	s.byTag = make(map[string][]int)
	s.byType = make(map[string][]int)
	for pos := range s.data.Entries {
		s.index(pos)
	}
	return nil
}

// save writes the store to disk. Caller must hold s.mu.
func (s *fileKnowledgeStore) save() error {
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("saving knowledge: creating directory: %w", err)
	}
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("saving knowledge: marshaling YAML: %w", err)
	}
	if err := os.WriteFile(s.filePath(), data, 0o600); err != nil {
		return fmt.Errorf("saving knowledge: writing file: %w", err)
	}
	return nil
}
