package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/engine/step/retry"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

func fastPolicy(attempts int) retry.RetryPolicy {
	return retry.NewDefaultRetryPolicyFactory().Create(config.RetryConfig{MaxAttempts: attempts, InitialInterval: 1, Factor: 2}, nil)
}

func TestBackoffInterval(t *testing.T) {
	p := retry.NewDefaultRetryPolicyFactory().Create(config.RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 2000,
		MaxInterval:     10000,
		Factor:          2,
	}, nil)

	assert.Equal(t, 5, p.GetMaxAttempts())
	assert.Equal(t, 2*time.Second, p.GetBackoffInterval(0))
	assert.Equal(t, 4*time.Second, p.GetBackoffInterval(1))
	assert.Equal(t, 8*time.Second, p.GetBackoffInterval(2))
	assert.Equal(t, 10*time.Second, p.GetBackoffInterval(3))
	assert.Equal(t, 10*time.Second, p.GetBackoffInterval(30))
}

func TestCreate_Defaults(t *testing.T) {
	p := retry.NewDefaultRetryPolicyFactory().Create(config.RetryConfig{InitialInterval: 100}, nil)
	assert.Equal(t, 1, p.GetMaxAttempts())
	assert.Equal(t, 200*time.Millisecond, p.GetBackoffInterval(1))
}

func TestShouldRetry(t *testing.T) {
	p := retry.NewDefaultRetryPolicyFactory().Create(config.RetryConfig{MaxAttempts: 3}, []string{"context.DeadlineExceeded", "quota"})

	assert.False(t, p.ShouldRetry(nil))
	assert.True(t, p.ShouldRetry(exception.NewConnectivityError("gateway", "timeout", nil)))
	assert.False(t, p.ShouldRetry(exception.NewApplicationError("gateway", "quota rejected", nil)))
	assert.False(t, p.ShouldRetry(exception.NewAuthenticationError("gateway", "denied", nil)))
	assert.False(t, p.ShouldRetry(context.Canceled))
	assert.True(t, p.ShouldRetry(context.DeadlineExceeded))
	assert.True(t, p.ShouldRetry(errors.New("daily quota reached")))
	assert.False(t, p.ShouldRetry(errors.New("something else")))
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var delays []time.Duration
	retries, err := retry.Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return exception.NewConnectivityError("gateway", "reset", nil)
		}
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDo_BudgetExhausted(t *testing.T) {
	calls := 0
	retries, err := retry.Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return exception.NewConnectivityError("gateway", "timeout", nil)
	}, nil)

	require.Error(t, err)
	assert.True(t, exception.IsConnectivity(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDo_ApplicationErrorNotRetried(t *testing.T) {
	calls := 0
	retries, err := retry.Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return exception.NewApplicationError("gateway", "constraint", nil)
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, retries)
}

func TestDo_CancelledDuringWait(t *testing.T) {
	p := retry.NewDefaultRetryPolicyFactory().Create(config.RetryConfig{MaxAttempts: 3, InitialInterval: 60000}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := retry.Do(ctx, p, func(ctx context.Context) error {
		return exception.NewConnectivityError("gateway", "timeout", nil)
	}, func(int, error, time.Duration) { cancel() })

	assert.ErrorIs(t, err, context.Canceled)
}
