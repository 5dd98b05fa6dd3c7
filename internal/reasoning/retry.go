package reasoning

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

// RetryPolicy controls how failed reasoning calls are retried with
// exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// isRetryable classifies errors as retryable or permanent. Validation
// errors are permanent; transport-level errors inside an
// ExternalCallError are retried.
func (p *RetryPolicy) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") {
		return false
	}
	return true
}

// NextDelay returns the backoff delay for the given attempt number
// (1-indexed). The delay is InitialDelay * Multiplier^(attempt-1),
// capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// RetryReasoner wraps another Reasoner and retries transient failures
// under the policy. It sits outside the timeout wrapper so each attempt
// gets its own deadline.
type RetryReasoner struct {
	inner  Reasoner
	policy *RetryPolicy
}

// WithRetry wraps inner so every call is retried per policy. A nil
// policy falls back to the defaults.
func WithRetry(inner Reasoner, policy *RetryPolicy) *RetryReasoner {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return &RetryReasoner{inner: inner, policy: policy}
}

func (r *RetryReasoner) EvaluatePerception(ctx context.Context, perception models.Perception) ([]models.Idea, error) {
	var ideas []models.Idea
	err := r.policy.Execute(func() error {
		var callErr error
		ideas, callErr = r.inner.EvaluatePerception(ctx, perception)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return ideas, nil
}

func (r *RetryReasoner) GeneratePlan(ctx context.Context, item models.WorkItem) (*models.Plan, error) {
	var plan *models.Plan
	err := r.policy.Execute(func() error {
		var callErr error
		plan, callErr = r.inner.GeneratePlan(ctx, item)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *RetryReasoner) ExecuteTool(ctx context.Context, task models.PlanTask) (string, error) {
	var result string
	err := r.policy.Execute(func() error {
		var callErr error
		result, callErr = r.inner.ExecuteTool(ctx, task)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// Execute runs fn up to MaxAttempts times, sleeping between retries
// with exponential backoff. Returns nil on success or the last error if
// all attempts fail or the error is non-retryable.
func (p *RetryPolicy) Execute(fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.isRetryable(err) {
			return err
		}
		if attempt < p.MaxAttempts {
			time.Sleep(p.NextDelay(attempt))
		}
	}
	return lastErr
}
