package reasoning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

// flakyReasoner fails its first failures calls on every method, then
// delegates to HeuristicReasoner.
type flakyReasoner struct {
	failures int
	calls    int
	inner    Reasoner
}

func (r *flakyReasoner) EvaluatePerception(ctx context.Context, perception models.Perception) ([]models.Idea, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, &models.ExternalCallError{Call: "reasoner.evaluate_perception", Err: errors.New("backend unavailable")}
	}
	return r.inner.EvaluatePerception(ctx, perception)
}

func (r *flakyReasoner) GeneratePlan(ctx context.Context, item models.WorkItem) (*models.Plan, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, &models.ExternalCallError{Call: "reasoner.generate_plan", Err: errors.New("backend unavailable")}
	}
	return r.inner.GeneratePlan(ctx, item)
}

func (r *flakyReasoner) ExecuteTool(ctx context.Context, task models.PlanTask) (string, error) {
	r.calls++
	if r.calls <= r.failures {
		return "", &models.ExternalCallError{Call: "reasoner.execute_tool", Err: errors.New("backend unavailable")}
	}
	return r.inner.ExecuteTool(ctx, task)
}

func testPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	calls := 0
	err := testPolicy(3).Execute(func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestExecuteReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	wantErr := errors.New("still down")
	err := testPolicy(2).Execute(func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}

func TestExecuteStopsOnPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation error", &models.ValidationError{Field: "title", Reason: "empty"}},
		{"unauthorized", errors.New("401 Unauthorized")},
		{"forbidden", errors.New("request forbidden by policy")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := testPolicy(5).Execute(func() error {
				calls++
				return tt.err
			})
			if err == nil {
				t.Fatal("Execute() swallowed a permanent error")
			}
			if calls != 1 {
				t.Errorf("fn called %d times, want 1", calls)
			}
		})
	}
}

func TestExecuteRetriesWrappedExternalErrors(t *testing.T) {
	calls := 0
	err := testPolicy(2).Execute(func() error {
		calls++
		return &models.ExternalCallError{Call: "reasoner.generate_plan", Err: errors.New("timeout")}
	})
	if err == nil {
		t.Fatal("Execute() returned nil after exhausting retries")
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}

func TestNextDelayGrowsAndCaps(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if got := policy.NextDelay(1); got != time.Second {
		t.Errorf("NextDelay(1) = %s, want 1s", got)
	}
	if got := policy.NextDelay(2); got != 2*time.Second {
		t.Errorf("NextDelay(2) = %s, want 2s", got)
	}
	if got := policy.NextDelay(10); got != 5*time.Second {
		t.Errorf("NextDelay(10) = %s, want capped 5s", got)
	}
}

func TestWithRetryRecoversTransientPlanFailure(t *testing.T) {
	flaky := &flakyReasoner{failures: 2, inner: NewHeuristicReasoner()}
	r := WithRetry(flaky, testPolicy(3))

	plan, err := r.GeneratePlan(context.Background(), workItem(models.TicketTask, models.PriorityMedium, "wire the cache"))
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if plan == nil || len(plan.Steps) == 0 {
		t.Fatal("GeneratePlan() returned an empty plan after retries")
	}
	if flaky.calls != 3 {
		t.Errorf("inner reasoner called %d times, want 3", flaky.calls)
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	flaky := &flakyReasoner{failures: 10, inner: NewHeuristicReasoner()}
	r := WithRetry(flaky, testPolicy(2))

	if _, err := r.ExecuteTool(context.Background(), models.PlanTask{ID: "s-1", Tool: "grep"}); err == nil {
		t.Fatal("ExecuteTool() succeeded past the attempt cap")
	}
	if flaky.calls != 2 {
		t.Errorf("inner reasoner called %d times, want 2", flaky.calls)
	}
}

func TestWithRetryNilPolicyUsesDefaults(t *testing.T) {
	r := WithRetry(NewHeuristicReasoner(), nil)
	if r.policy.MaxAttempts != DefaultRetryPolicy().MaxAttempts {
		t.Errorf("policy = %+v, want defaults", r.policy)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	if policy.MaxAttempts != 3 || policy.InitialDelay != time.Second {
		t.Errorf("defaults = %+v", policy)
	}
}
