package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy 指数退避重试策略
type Policy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 第一次重试前的延迟
	MaxDelay     time.Duration // 延迟上限
	Multiplier   float64       // 延迟倍增因子
	Jitter       bool          // ±25% 随机抖动
	// RetryIf 判断错误是否可重试，nil 时只重试 WrapRetryable 包装过的错误
	RetryIf func(err error) bool
	// OnRetry 每次重试前回调
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy 返回适用于 LLM 补全调用的默认策略
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer 指数退避重试器，构造后只读，可并发使用
type Retryer struct {
	policy Policy
	logger *zap.Logger
}

// New 创建重试器，非法参数回落到默认值
func New(policy Policy, logger *zap.Logger) *Retryer {
	def := DefaultPolicy()
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = def.InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = policy.InitialDelay
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = def.Multiplier
	}
	if policy.RetryIf == nil {
		policy.RetryIf = IsRetryable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{
		policy: policy,
		logger: logger.With(zap.String("component", "retry")),
	}
}

// Policy 返回生效的策略
func (r *Retryer) Policy() Policy { return r.policy }

// Do 执行 fn，失败且可重试时按退避策略重试
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do 带返回值的重试。
// ctx 在等待期间结束时返回包装了 ctx.Err() 的错误；不可重试的错误原样返回。
func Do[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.Delay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !r.policy.RetryIf(err) || ctx.Err() != nil {
			return zero, err
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return zero, fmt.Errorf("giving up after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// Delay 第 attempt 次重试前的等待时间：initial * multiplier^(attempt-1)，不超过 MaxDelay
func (r *Retryer) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}
	return time.Duration(delay)
}

// RetryableError 标记可重试的错误（限流、服务端错误、网络中断）
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable 错误链中是否包含 *RetryableError
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}

// WrapRetryable 将错误包装为可重试错误
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}
