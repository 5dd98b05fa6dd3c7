// Package reasoning defines the reasoning collaborator interface used by
// the PROPEL loop and a deterministic heuristic implementation of it.
package reasoning

import (
	"context"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

// Reasoner defines the interface the PROPEL loop uses for everything
// that requires judgement. Implementations may call out to an LLM
// backend; the executor treats every call as fallible and slow.
type Reasoner interface {
	// EvaluatePerception reviews the perceived work context and returns
	// ideas worth considering during planning.
	EvaluatePerception(ctx context.Context, perception models.Perception) ([]models.Idea, error)

	// GeneratePlan produces a base plan for the work item. Knowledge
	// bias is applied by the caller, not here.
	GeneratePlan(ctx context.Context, item models.WorkItem) (*models.Plan, error)

	// ExecuteTool runs a single tool step and returns a human-readable
	// result summary.
	ExecuteTool(ctx context.Context, task models.PlanTask) (string, error)
}

// Config holds common configuration for reasoning backends.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
}

// DefaultConfig returns the reasoning defaults: 30s per call, 3 attempts.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
	}
}
