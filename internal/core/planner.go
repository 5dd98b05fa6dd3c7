package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/propelhq/propel/internal/reasoning"
	"github.com/propelhq/propel/pkg/models"
)

// relevanceThreshold is the score above which recalled knowledge may
// influence a plan. Entries at or below it are ignored.
const relevanceThreshold = 0.5

// Planner turns a work item into an executable plan: a reasoner-generated
// base plan biased by relevant recalled knowledge.
type Planner struct {
	reasoner  reasoning.Reasoner
	knowledge KnowledgeManager
	logger    *slog.Logger
}

// NewPlanner creates a Planner over the reasoning collaborator and
// knowledge memory.
func NewPlanner(reasoner reasoning.Reasoner, knowledge KnowledgeManager, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{reasoner: reasoner, knowledge: knowledge, logger: logger}
}

// BuildPlan generates the base plan and applies knowledge bias. Recall
// failures degrade to an unbiased plan; plan generation failures
// propagate.
func (p *Planner) BuildPlan(ctx context.Context, item models.WorkItem) (*models.Plan, error) {
	plan, err := p.reasoner.GeneratePlan(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("building plan for ticket %s: %w", item.Ticket.ID, err)
	}

	recalled, err := p.recall(item, plan.EstimatedComplexity)
	if err != nil {
		p.logger.Warn("knowledge recall failed, planning without bias", "ticket_id", item.Ticket.ID, "error", err)
		return plan, nil
	}

	p.applyKnowledgeBias(plan, recalled)
	return plan, nil
}

func (p *Planner) recall(item models.WorkItem, complexity int) ([]models.ScoredKnowledge, error) {
	if p.knowledge == nil {
		return nil, nil
	}
	var tags []string
	for _, idea := range item.Ideas {
		tags = append(tags, idea.Tags...)
	}
	return p.knowledge.Recall(models.KnowledgeQuery{
		Description: item.Ticket.Title + " " + item.Ticket.Description,
		Tags:        tags,
		TaskType:    string(item.Ticket.Type),
		Complexity:  complexity,
	})
}

// applyKnowledgeBias folds recalled entries scoring above the threshold
// into the plan: a past failure for a similar task type inserts one
// validation step early; a past success contributes its recorded
// approach as an extra step. Entries at or below the threshold leave
// the plan untouched.
func (p *Planner) applyKnowledgeBias(plan *models.Plan, recalled []models.ScoredKnowledge) {
	validationAdded := false
	for _, scored := range recalled {
		if scored.Score <= relevanceThreshold {
			continue
		}
		switch scored.Knowledge.Outcome {
		case models.OutcomeFailure:
			if validationAdded {
				continue
			}
			step := models.PlanTask{
				ID:          uuid.NewString(),
				Description: fmt.Sprintf("validate assumptions early: a similar %s previously failed (%s)", scored.Knowledge.TaskType, scored.Knowledge.Learnings),
				Action:      "verify",
				Critical:    true,
			}
			plan.Steps = insertStep(plan.Steps, 1, step)
			validationAdded = true
			p.logger.Debug("plan biased by failure knowledge", "plan_id", plan.ID, "knowledge_id", scored.Knowledge.ID, "score", scored.Score)
		case models.OutcomeSuccess:
			step := models.PlanTask{
				ID:          uuid.NewString(),
				Description: fmt.Sprintf("apply known-good approach: %s", scored.Knowledge.Approach),
				Action:      "implement",
			}
			plan.Steps = insertStep(plan.Steps, len(plan.Steps)-1, step)
			p.logger.Debug("plan biased by success knowledge", "plan_id", plan.ID, "knowledge_id", scored.Knowledge.ID, "score", scored.Score)
		}
	}
}

// insertStep places step at index i, clamped to the slice bounds.
func insertStep(steps []models.PlanTask, i int, step models.PlanTask) []models.PlanTask {
	if i < 0 {
		i = 0
	}
	if i > len(steps) {
		i = len(steps)
	}
	steps = append(steps, models.PlanTask{})
	copy(steps[i+1:], steps[i:])
	steps[i] = step
	return steps
}
