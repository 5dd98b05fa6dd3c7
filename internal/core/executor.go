package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/propelhq/propel/internal/reasoning"
	"github.com/propelhq/propel/pkg/models"
)

// ActionFunc handles one internal (non-tool) plan step. Batch handlers
// report per-item counts through the result; a FailureCount > 0 with a
// nil error yields a partial_success outcome.
type ActionFunc func(ctx context.Context, task models.PlanTask) (models.StepResult, error)

// Executor runs the PROPEL loop for one work item: Perceive aggregates
// context, Plan produces a knowledge-biased plan, Execute walks the
// steps in order with partial-failure semantics, and Learn persists what
// the run taught.
type Executor struct {
	reasoner  reasoning.Reasoner
	planner   *Planner
	knowledge KnowledgeManager
	bus       Publisher
	actions   map[string]ActionFunc
	logger    *slog.Logger
}

// NewExecutor wires an executor. Internal actions default to the
// built-in analyze/implement/verify handlers; RegisterAction extends
// the table.
func NewExecutor(reasoner reasoning.Reasoner, planner *Planner, knowledge KnowledgeManager, bus Publisher, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		reasoner:  reasoner,
		planner:   planner,
		knowledge: knowledge,
		bus:       bus,
		actions:   make(map[string]ActionFunc),
		logger:    logger,
	}
	for _, action := range []string{"analyze", "implement", "verify"} {
		name := action
		e.actions[name] = func(ctx context.Context, task models.PlanTask) (models.StepResult, error) {
			if err := ctx.Err(); err != nil {
				return models.StepResult{}, err
			}
			return models.StepResult{Detail: fmt.Sprintf("%s done: %s", name, task.Description)}, nil
		}
	}
	return e
}

// RegisterAction adds or replaces an internal action handler.
func (e *Executor) RegisterAction(name string, fn ActionFunc) {
	e.actions[name] = fn
}

// Run executes the four phases for one work item and returns the
// aggregate outcome. Step-level errors never propagate as errors; they
// become Failure outcomes.
func (e *Executor) Run(ctx context.Context, item models.WorkItem) (*models.PlanOutcome, error) {
	started := time.Now()

	perception := e.perceive(ctx, item)
	item.Ideas = perception.Ideas

	plan, err := e.planner.BuildPlan(ctx, item)
	if err != nil {
		return nil, err
	}
	e.logger.Info("plan built",
		"ticket_id", item.Ticket.ID,
		"agent_id", item.AgentID,
		"steps", len(plan.Steps),
		"complexity", plan.EstimatedComplexity)

	outcome := e.execute(ctx, item, plan)
	outcome.Duration = time.Since(started)

	e.learn(ctx, item, plan, outcome)
	return outcome, nil
}

// perceive aggregates the ticket and supplied ideas; the reasoner
// contributes content but its failure degrades to the supplied ideas
// alone.
func (e *Executor) perceive(ctx context.Context, item models.WorkItem) models.Perception {
	perception := models.Perception{
		Ticket:     item.Ticket,
		AgentID:    item.AgentID,
		Ideas:      item.Ideas,
		ObservedAt: time.Now().UTC(),
	}
	ideas, err := e.reasoner.EvaluatePerception(ctx, perception)
	if err != nil {
		e.logger.Warn("perception evaluation failed, continuing with supplied ideas", "ticket_id", item.Ticket.ID, "error", err)
		return perception
	}
	perception.Ideas = append(perception.Ideas, ideas...)
	return perception
}

// execute walks the plan steps strictly in order. A critical failure at
// step k stops execution; steps k+1..N are Skipped.
func (e *Executor) execute(ctx context.Context, item models.WorkItem, plan *models.Plan) *models.PlanOutcome {
	outcome := &models.PlanOutcome{
		Kind:   models.OutcomeSuccess,
		PlanID: plan.ID,
		Steps:  make([]models.StepOutcome, 0, len(plan.Steps)),
	}

	criticalAt := -1
	for i, step := range plan.Steps {
		if criticalAt >= 0 {
			outcome.Steps = append(outcome.Steps, models.StepSkipped(step.ID,
				fmt.Sprintf("skipped due to critical failure in step %d", criticalAt+1)))
			continue
		}

		stepOutcome := e.runStep(ctx, item, step)
		outcome.Steps = append(outcome.Steps, stepOutcome)
		if stepOutcome.Kind == models.OutcomeFailure {
			outcome.Kind = models.OutcomeFailure
			if stepOutcome.IsCritical {
				criticalAt = i
				e.logger.Error("critical step failure, short-circuiting plan",
					"plan_id", plan.ID,
					"step", i+1,
					"error", stepOutcome.Err)
			}
		}
	}
	return outcome
}

// runStep executes one step, routing tool steps to the reasoning
// collaborator and internal steps to the action table. A panic becomes
// a critical Failure so the agent loop stays alive.
func (e *Executor) runStep(ctx context.Context, item models.WorkItem, step models.PlanTask) (out models.StepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step panicked", "step_id", step.ID, "panic", r)
			out = models.StepFailure(step.ID, fmt.Errorf("panic: %v", r), true)
		}
	}()

	if step.Tool != "" {
		result, err := e.reasoner.ExecuteTool(ctx, step)
		e.publishToolInvoked(ctx, item, step, err)
		if err != nil {
			return models.StepFailure(step.ID, err, step.Critical)
		}
		return models.StepSuccess(step.ID, result)
	}

	action, ok := e.actions[step.Action]
	if !ok {
		return models.StepFailure(step.ID, fmt.Errorf("no handler for action %q", step.Action), step.Critical)
	}
	result, err := action(ctx, step)
	if err != nil {
		return models.StepFailure(step.ID, err, step.Critical)
	}
	return result.Outcome(step.ID)
}

// learn derives a knowledge entry from the run and announces completion.
func (e *Executor) learn(ctx context.Context, item models.WorkItem, plan *models.Plan, outcome *models.PlanOutcome) {
	entry := models.Knowledge{
		Approach:   describeApproach(plan),
		Learnings:  describeLearnings(plan, outcome),
		Tags:       []string{string(item.Ticket.Type), string(item.Ticket.Priority)},
		TaskType:   string(item.Ticket.Type),
		Outcome:    outcome.Kind,
		Complexity: plan.EstimatedComplexity,
	}

	if e.knowledge != nil {
		if _, err := e.knowledge.Store(ctx, entry); err != nil {
			e.logger.Error("storing learned knowledge", "plan_id", plan.ID, "error", err)
		}
	}

	if e.bus != nil {
		err := e.bus.Publish(ctx, models.Event{
			Source: models.AgentSource(item.AgentID),
			Type:   models.EventPlanCompleted,
			Payload: models.MarshalPayload(models.PlanCompletedPayload{
				PlanID:    plan.ID,
				TicketID:  item.Ticket.ID,
				AgentID:   item.AgentID,
				Outcome:   string(outcome.Kind),
				StepCount: len(outcome.Steps),
			}),
		})
		if err != nil {
			e.logger.Error("publishing plan completion", "plan_id", plan.ID, "error", err)
		}
	}
}

// describeApproach summarizes what was attempted: sub-task count and
// whether a validation-first pattern was present.
func describeApproach(plan *models.Plan) string {
	pattern := "no early validation"
	if hasEarlyValidation(plan.Steps) {
		pattern = "validation-first"
	}
	return fmt.Sprintf("executed %d sub-tasks (%s, complexity %d)", len(plan.Steps), pattern, plan.EstimatedComplexity)
}

// describeLearnings differs in tone for success and failure; a failure
// always carries a remediation recommendation.
func describeLearnings(plan *models.Plan, outcome *models.PlanOutcome) string {
	counts := outcome.Counts()
	if outcome.Kind != models.OutcomeFailure {
		return fmt.Sprintf("approach completed cleanly: %d of %d steps succeeded", counts[models.OutcomeSuccess], len(outcome.Steps))
	}

	failedAt := 0
	var failedErr string
	for i, step := range outcome.Steps {
		if step.Kind == models.OutcomeFailure {
			failedAt = i + 1
			failedErr = step.Err
			break
		}
	}
	return fmt.Sprintf("step %d failed (%s); recommendation: add a validation step before step %d and retry with the failure addressed",
		failedAt, failedErr, failedAt)
}

func hasEarlyValidation(steps []models.PlanTask) bool {
	limit := len(steps) / 2
	if limit == 0 {
		limit = len(steps)
	}
	for _, step := range steps[:limit] {
		if step.Action == "verify" || strings.Contains(strings.ToLower(step.Description), "validat") {
			return true
		}
	}
	return false
}

func (e *Executor) publishToolInvoked(ctx context.Context, item models.WorkItem, step models.PlanTask, callErr error) {
	if e.bus == nil {
		return
	}
	payload := map[string]string{"tool": step.Tool, "step_id": step.ID}
	if callErr != nil {
		payload["error"] = callErr.Error()
	}
	err := e.bus.Publish(ctx, models.Event{
		Source:  models.AgentSource(item.AgentID),
		Type:    models.EventToolInvoked,
		Payload: models.MarshalPayload(payload),
	})
	if err != nil {
		e.logger.Error("publishing tool invocation", "tool", step.Tool, "error", err)
	}
}
