package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

// KnowledgeManager owns the append-only knowledge memory: storing
// learnings derived from plan runs and recalling them ranked by
// relevance for future planning.
type KnowledgeManager interface {
	// Store appends one knowledge entry and announces it on the bus.
	Store(ctx context.Context, entry models.Knowledge) (*models.Knowledge, error)

	// Recall returns all candidates ranked descending by relevance to
	// the query. Thresholding is the caller's concern.
	Recall(query models.KnowledgeQuery) ([]models.ScoredKnowledge, error)

	// Get returns one entry by id.
	Get(id string) (*models.Knowledge, error)

	// All returns every entry in insertion order.
	All() ([]models.Knowledge, error)
}

type knowledgeManager struct {
	store   storage.KnowledgeStore
	bus     Publisher
	weights RecallWeights
	logger  *slog.Logger
	now     func() time.Time
}

// NewKnowledgeManager creates a KnowledgeManager over the given store.
// A zero RecallWeights falls back to the defaults.
func NewKnowledgeManager(store storage.KnowledgeStore, bus Publisher, weights RecallWeights, logger *slog.Logger) KnowledgeManager {
	if weights == (RecallWeights{}) {
		weights = DefaultRecallWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &knowledgeManager{
		store:   store,
		bus:     bus,
		weights: weights,
		logger:  logger,
		now:     time.Now,
	}
}

func (m *knowledgeManager) Store(ctx context.Context, entry models.Knowledge) (*models.Knowledge, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now().UTC()
	}
	if err := m.store.StoreKnowledge(entry); err != nil {
		return nil, &models.PersistenceError{Op: "store knowledge", Err: err}
	}

	if m.bus != nil {
		err := m.bus.Publish(ctx, models.Event{
			Source: models.AgentSource("memory"),
			Type:   models.EventKnowledgeStored,
			Payload: models.MarshalPayload(models.KnowledgeStoredPayload{
				KnowledgeID: entry.ID,
				TaskType:    entry.TaskType,
				Tags:        entry.Tags,
				Outcome:     string(entry.Outcome),
			}),
		})
		if err != nil {
			m.logger.Error("publishing knowledge event", "knowledge_id", entry.ID, "error", err)
		}
	}
	m.logger.Debug("knowledge stored", "knowledge_id", entry.ID, "task_type", entry.TaskType, "outcome", entry.Outcome)
	return &entry, nil
}

func (m *knowledgeManager) Recall(query models.KnowledgeQuery) ([]models.ScoredKnowledge, error) {
	var (
		candidates []models.Knowledge
		err        error
	)
	if len(query.Tags) > 0 || query.TaskType != "" {
		candidates, err = m.store.QueryKnowledge(query.Tags, query.TaskType)
	} else {
		candidates, err = m.store.AllKnowledge()
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "query knowledge", Err: err}
	}
	return RankKnowledge(query, candidates, m.now().UTC(), m.weights), nil
}

func (m *knowledgeManager) Get(id string) (*models.Knowledge, error) {
	return m.store.GetKnowledge(id)
}

func (m *knowledgeManager) All() ([]models.Knowledge, error) {
	return m.store.AllKnowledge()
}
