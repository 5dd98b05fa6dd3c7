package reasoning

import (
	"context"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

// TimeoutReasoner wraps another Reasoner and bounds every call with a
// deadline. Errors, including deadline expiry, come back as
// ExternalCallError so callers can treat the backend as an unreliable
// external dependency.
type TimeoutReasoner struct {
	inner   Reasoner
	timeout time.Duration
}

// WithTimeout wraps inner so every call runs under the given timeout.
// A non-positive timeout falls back to the default.
func WithTimeout(inner Reasoner, timeout time.Duration) *TimeoutReasoner {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &TimeoutReasoner{inner: inner, timeout: timeout}
}

func (r *TimeoutReasoner) EvaluatePerception(ctx context.Context, perception models.Perception) ([]models.Idea, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ideas, err := r.inner.EvaluatePerception(ctx, perception)
	if err != nil {
		return nil, &models.ExternalCallError{Call: "reasoner.evaluate_perception", Err: err}
	}
	return ideas, nil
}

func (r *TimeoutReasoner) GeneratePlan(ctx context.Context, item models.WorkItem) (*models.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	plan, err := r.inner.GeneratePlan(ctx, item)
	if err != nil {
		return nil, &models.ExternalCallError{Call: "reasoner.generate_plan", Err: err}
	}
	return plan, nil
}

func (r *TimeoutReasoner) ExecuteTool(ctx context.Context, task models.PlanTask) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.inner.ExecuteTool(ctx, task)
	if err != nil {
		return "", &models.ExternalCallError{Call: "reasoner.execute_tool", Err: err}
	}
	return result, nil
}
