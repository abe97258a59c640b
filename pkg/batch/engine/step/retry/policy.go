// Package retry decides whether a failed gateway call is attempted again and
// how long to wait before doing so.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

// RetryPolicy is an interface that defines retry logic.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the wait before retry number attempt
	// (starting from 0).
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the total number of attempts, the first call
	// included.
	GetMaxAttempts() int
}

// DefaultRetryPolicyFactory is a factory for creating RetryPolicy.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create creates an exponential backoff policy from the retry settings.
// retryableExceptions names additional error types (see exception.IsErrorOfType)
// that are retried even though they are not connectivity faults.
func (f *DefaultRetryPolicyFactory) Create(cfg config.RetryConfig, retryableExceptions []string) RetryPolicy {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	factor := cfg.Factor
	if factor < 1 {
		factor = 2
	}
	return &defaultRetryPolicy{
		maxAttempts:         maxAttempts,
		initialInterval:     time.Duration(cfg.InitialInterval) * time.Millisecond,
		maxInterval:         time.Duration(cfg.MaxInterval) * time.Millisecond,
		factor:              factor,
		retryableExceptions: retryableExceptions,
	}
}

// defaultRetryPolicy waits initialInterval * factor^attempt, capped by
// maxInterval when it is set.
type defaultRetryPolicy struct {
	maxAttempts         int
	initialInterval     time.Duration
	maxInterval         time.Duration
	factor              float64
	retryableExceptions []string
}

func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry retries connectivity faults and configured error types.
// Cancellation, authentication and application faults are never retried.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if be, ok := exception.AsBatchError(err); ok {
		if be.IsRetryable() {
			return true
		}
		if be.Kind == exception.KindAuthentication || be.Kind == exception.KindApplication {
			return false
		}
	}

	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}

	return false
}

func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.initialInterval) * math.Pow(p.factor, float64(attempt))
	if p.maxInterval > 0 && d > float64(p.maxInterval) {
		return p.maxInterval
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Verify interfaces
var _ RetryPolicy = (*defaultRetryPolicy)(nil)

// Do calls fn until it succeeds, fails with an error the policy does not
// retry, or the attempt budget is spent. onRetry, when not nil, is invoked
// before every wait. It returns the number of retries performed and the last
// error.
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error, onRetry func(attempt int, err error, delay time.Duration)) (int, error) {
	retries := 0
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return retries, nil
		}
		if attempt+1 >= policy.GetMaxAttempts() || !policy.ShouldRetry(err) {
			return retries, err
		}
		if ctx.Err() != nil {
			return retries, err
		}

		delay := policy.GetBackoffInterval(attempt)
		if onRetry != nil {
			onRetry(attempt+1, err, delay)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return retries, ctx.Err()
			case <-timer.C:
			}
		}
		retries++
	}
}
