package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlanTask is a single step inside a Plan. Tool steps are routed to the
// reasoning collaborator; action steps to an internal handler.
type PlanTask struct {
	ID          string          `yaml:"id" json:"id"`
	Description string          `yaml:"description" json:"description"`
	Tool        string          `yaml:"tool,omitempty" json:"tool,omitempty"`
	Action      string          `yaml:"action,omitempty" json:"action,omitempty"`
	Request     json.RawMessage `yaml:"request,omitempty" json:"request,omitempty"`
	Critical    bool            `yaml:"critical,omitempty" json:"critical,omitempty"`
}

// Plan is an ordered sequence of steps produced for a single ticket,
// together with an estimated complexity score.
type Plan struct {
	ID                  string     `yaml:"id" json:"id"`
	TicketID            string     `yaml:"ticket_id" json:"ticket_id"`
	Steps               []PlanTask `yaml:"steps" json:"steps"`
	EstimatedComplexity int        `yaml:"estimated_complexity" json:"estimated_complexity"`
	CreatedAt           time.Time  `yaml:"created_at" json:"created_at"`
}

// OutcomeKind tags a StepOutcome variant. The set is closed.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomePartialSuccess OutcomeKind = "partial_success"
	OutcomeFailure        OutcomeKind = "failure"
	OutcomeSkipped        OutcomeKind = "skipped"
)

// StepOutcome is the result of executing one plan step. Exactly the fields
// of the tagged variant are meaningful: SuccessCount/FailureCount for
// partial_success, IsCritical and Err for failure, Reason for skipped.
type StepOutcome struct {
	Kind         OutcomeKind `yaml:"kind" json:"kind"`
	StepID       string      `yaml:"step_id" json:"step_id"`
	Detail       string      `yaml:"detail,omitempty" json:"detail,omitempty"`
	SuccessCount int         `yaml:"success_count,omitempty" json:"success_count,omitempty"`
	FailureCount int         `yaml:"failure_count,omitempty" json:"failure_count,omitempty"`
	IsCritical   bool        `yaml:"is_critical,omitempty" json:"is_critical,omitempty"`
	Err          string      `yaml:"error,omitempty" json:"error,omitempty"`
	Reason       string      `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// StepResult is what an action handler reports back: a detail string
// plus optional per-item counts for batch actions. A result with
// FailureCount > 0 maps to a partial_success outcome.
type StepResult struct {
	Detail       string
	SuccessCount int
	FailureCount int
}

// Outcome converts the handler result into the outcome variant for the
// given step.
func (r StepResult) Outcome(stepID string) StepOutcome {
	if r.FailureCount > 0 {
		out := StepPartial(stepID, r.SuccessCount, r.FailureCount)
		out.Detail = r.Detail
		return out
	}
	return StepSuccess(stepID, r.Detail)
}

// StepSuccess builds a success outcome for the given step.
func StepSuccess(stepID, detail string) StepOutcome {
	return StepOutcome{Kind: OutcomeSuccess, StepID: stepID, Detail: detail}
}

// StepPartial builds a partial_success outcome with per-item counts.
func StepPartial(stepID string, successCount, failureCount int) StepOutcome {
	return StepOutcome{
		Kind:         OutcomePartialSuccess,
		StepID:       stepID,
		SuccessCount: successCount,
		FailureCount: failureCount,
	}
}

// StepFailure builds a failure outcome. Critical failures stop plan
// execution.
func StepFailure(stepID string, err error, critical bool) StepOutcome {
	out := StepOutcome{Kind: OutcomeFailure, StepID: stepID, IsCritical: critical}
	if err != nil {
		out.Err = err.Error()
	}
	return out
}

// StepSkipped builds a skipped outcome with the given reason.
func StepSkipped(stepID, reason string) StepOutcome {
	return StepOutcome{Kind: OutcomeSkipped, StepID: stepID, Reason: reason}
}

// PlanOutcome aggregates the step outcomes of a completed plan run.
type PlanOutcome struct {
	Kind     OutcomeKind   `yaml:"kind" json:"kind"`
	PlanID   string        `yaml:"plan_id" json:"plan_id"`
	Steps    []StepOutcome `yaml:"steps" json:"steps"`
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// Counts returns the number of steps per outcome kind.
func (o PlanOutcome) Counts() map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int, 4)
	for _, s := range o.Steps {
		counts[s.Kind]++
	}
	return counts
}

// WorkItem is the unit of work handed to the PROPEL executor: the ticket
// to work on plus any ideas supplied from outside the loop.
type WorkItem struct {
	Ticket  Ticket
	AgentID string
	Ideas   []Idea
}

// Idea is a suggestion produced by the reasoning collaborator or supplied
// by another agent, consumed during the Plan phase.
type Idea struct {
	Summary string   `yaml:"summary" json:"summary"`
	Detail  string   `yaml:"detail,omitempty" json:"detail,omitempty"`
	Tags    []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Perception is the aggregation produced by the Perceive phase.
type Perception struct {
	Ticket     Ticket    `yaml:"ticket" json:"ticket"`
	AgentID    string    `yaml:"agent_id" json:"agent_id"`
	Ideas      []Idea    `yaml:"ideas,omitempty" json:"ideas,omitempty"`
	ObservedAt time.Time `yaml:"observed_at" json:"observed_at"`
}

// Knowledge is an append-only learning derived from a completed plan run.
// Entries are never mutated after creation, only superseded by newer ones.
type Knowledge struct {
	ID         string      `yaml:"id" json:"id"`
	Approach   string      `yaml:"approach" json:"approach"`
	Learnings  string      `yaml:"learnings" json:"learnings"`
	Tags       []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	TaskType   string      `yaml:"task_type,omitempty" json:"task_type,omitempty"`
	Outcome    OutcomeKind `yaml:"outcome" json:"outcome"`
	Complexity int         `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	Timestamp  time.Time   `yaml:"timestamp" json:"timestamp"`
}

// KnowledgeQuery describes the context a planner recalls knowledge for.
type KnowledgeQuery struct {
	Description string
	Tags        []string
	TaskType    string
	Complexity  int
}

// ScoredKnowledge pairs a recalled entry with its relevance score.
type ScoredKnowledge struct {
	Knowledge Knowledge
	Score     float64
}

func (s ScoredKnowledge) String() string {
	return fmt.Sprintf("%s (%.2f)", s.Knowledge.ID, s.Score)
}
