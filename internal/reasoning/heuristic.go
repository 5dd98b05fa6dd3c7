package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propelhq/propel/pkg/models"
)

// HeuristicReasoner is a deterministic Reasoner built from simple rules.
// It is the default backend: no network, no model, same output for the
// same input. Useful for tests and for running the loop without an LLM
// configured.
type HeuristicReasoner struct{}

// NewHeuristicReasoner creates a rule-based Reasoner.
func NewHeuristicReasoner() *HeuristicReasoner {
	return &HeuristicReasoner{}
}

// EvaluatePerception derives ideas from the ticket's type and priority.
func (r *HeuristicReasoner) EvaluatePerception(ctx context.Context, perception models.Perception) ([]models.Idea, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ticket := perception.Ticket
	ideas := []models.Idea{
		{
			Summary: fmt.Sprintf("break %q into verifiable sub-tasks", ticket.Title),
			Tags:    []string{string(ticket.Type)},
		},
	}

	switch ticket.Type {
	case models.TicketBug:
		ideas = append(ideas, models.Idea{
			Summary: "reproduce before fixing",
			Detail:  "a failing reproduction pins the bug and becomes the regression test",
			Tags:    []string{"bug", "testing"},
		})
	case models.TicketSpike:
		ideas = append(ideas, models.Idea{
			Summary: "timebox the investigation and write up findings",
			Tags:    []string{"spike", "research"},
		})
	}

	if ticket.Priority == models.PriorityCritical {
		ideas = append(ideas, models.Idea{
			Summary: "prefer the smallest safe change",
			Tags:    []string{"critical"},
		})
	}
	return ideas, nil
}

// GeneratePlan splits the ticket description into sub-tasks, one step
// per sentence, bracketed by an analysis step and a verification step.
func (r *HeuristicReasoner) GeneratePlan(ctx context.Context, item models.WorkItem) (*models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ticket := item.Ticket
	steps := []models.PlanTask{{
		ID:          uuid.NewString(),
		Description: fmt.Sprintf("analyze requirements for %q", ticket.Title),
		Action:      "analyze",
		Critical:    true,
	}}

	for _, sentence := range splitSentences(ticket.Description) {
		steps = append(steps, models.PlanTask{
			ID:          uuid.NewString(),
			Description: sentence,
			Action:      "implement",
		})
	}

	steps = append(steps, models.PlanTask{
		ID:          uuid.NewString(),
		Description: "verify the result against the acceptance criteria",
		Action:      "verify",
		Critical:    ticket.Priority == models.PriorityCritical,
	})

	return &models.Plan{
		ID:                  uuid.NewString(),
		TicketID:            ticket.ID,
		Steps:               steps,
		EstimatedComplexity: estimateComplexity(ticket, len(steps)),
		CreatedAt:           time.Now().UTC(),
	}, nil
}

// ExecuteTool acknowledges the tool invocation. The heuristic backend
// has no real tools; it reports what would have run.
func (r *HeuristicReasoner) ExecuteTool(ctx context.Context, task models.PlanTask) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if task.Tool == "" {
		return "", fmt.Errorf("executing step %s: no tool named", task.ID)
	}
	return fmt.Sprintf("ran %s: %s", task.Tool, task.Description), nil
}

// splitSentences breaks a description into sentence-sized sub-tasks.
// Empty fragments are dropped.
func splitSentences(description string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(description, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n'
	}) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// estimateComplexity scores 1-10 from step count and priority.
func estimateComplexity(ticket models.Ticket, stepCount int) int {
	score := stepCount
	if ticket.Priority == models.PriorityHigh || ticket.Priority == models.PriorityCritical {
		score += 2
	}
	if score > 10 {
		score = 10
	}
	if score < 1 {
		score = 1
	}
	return score
}
