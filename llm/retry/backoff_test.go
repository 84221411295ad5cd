package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryer_SuccessFirstTry(t *testing.T) {
	r := New(fastPolicy(3), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_RetryAndSuccess(t *testing.T) {
	r := New(fastPolicy(3), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return WrapRetryable(errors.New("503 service unavailable"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryer_MaxRetriesExceeded(t *testing.T) {
	r := New(fastPolicy(2), zap.NewNop())
	base := errors.New("429 rate limited")

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return WrapRetryable(base)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 2 retries")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, 3, calls)
}

func TestRetryer_NonRetryableReturnsImmediately(t *testing.T) {
	r := New(fastPolicy(5), zap.NewNop())
	base := errors.New("400 bad request")

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return base
	})

	assert.Same(t, base, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_CustomRetryIf(t *testing.T) {
	transient := errors.New("transient")
	policy := fastPolicy(2)
	policy.RetryIf = func(err error) bool { return errors.Is(err, transient) }
	r := New(policy, nil)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return transient
	})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestRetryer_ContextCanceledDuringWait(t *testing.T) {
	policy := fastPolicy(5)
	policy.InitialDelay = time.Second
	policy.MaxDelay = time.Second
	r := New(policy, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := r.Do(ctx, func(context.Context) error {
		calls++
		return WrapRetryable(errors.New("timeout"))
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryer_Delay(t *testing.T) {
	r := New(Policy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}, nil)

	assert.Zero(t, r.Delay(0))
	assert.Equal(t, 100*time.Millisecond, r.Delay(1))
	assert.Equal(t, 200*time.Millisecond, r.Delay(2))
	assert.Equal(t, 400*time.Millisecond, r.Delay(3))
	assert.Equal(t, 800*time.Millisecond, r.Delay(4))
	assert.Equal(t, 1*time.Second, r.Delay(5))
	assert.Equal(t, 1*time.Second, r.Delay(10))
}

func TestRetryer_DelayWithJitterStaysInBounds(t *testing.T) {
	r := New(Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, nil)

	for i := 0; i < 50; i++ {
		d := r.Delay(3)
		assert.GreaterOrEqual(t, d, 300*time.Millisecond)
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	var attempts []int
	policy := fastPolicy(2)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
		assert.Positive(t, delay)
	}
	r := New(policy, zap.NewNop())

	_ = r.Do(context.Background(), func(context.Context) error {
		return WrapRetryable(errors.New("boom"))
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestNew_NormalizesPolicy(t *testing.T) {
	r := New(Policy{MaxRetries: -1, Multiplier: 0.5}, nil)
	p := r.Policy()

	assert.Zero(t, p.MaxRetries)
	assert.Equal(t, DefaultPolicy().InitialDelay, p.InitialDelay)
	assert.Equal(t, DefaultPolicy().MaxDelay, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.NotNil(t, p.RetryIf)
}

func TestWrapRetryable(t *testing.T) {
	assert.Nil(t, WrapRetryable(nil))

	base := errors.New("upstream 502")
	wrapped := WrapRetryable(base)
	assert.True(t, IsRetryable(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "upstream 502", wrapped.Error())
	assert.False(t, IsRetryable(base))
}

func TestDo_TypedResult(t *testing.T) {
	r := New(fastPolicy(3), zap.NewNop())

	calls := 0
	got, err := Do(context.Background(), r, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", WrapRetryable(errors.New("flaky"))
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 2, calls)
}
