package llm

import (
	"context"

	"github.com/BaSui01/convergio/llm/retry"
)

// RetryingCompleter 在可重试错误上按退避策略重试内层 Completer
type RetryingCompleter struct {
	inner   Completer
	retryer *retry.Retryer
}

// NewRetryingCompleter 包装 inner；retryer 为 nil 时使用默认策略
func NewRetryingCompleter(inner Completer, retryer *retry.Retryer) *RetryingCompleter {
	if retryer == nil {
		retryer = retry.New(retry.DefaultPolicy(), nil)
	}
	return &RetryingCompleter{inner: inner, retryer: retryer}
}

// Complete implements Completer.
func (c *RetryingCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return retry.Do(ctx, c.retryer, func(ctx context.Context) (*Completion, error) {
		return c.inner.Complete(ctx, req)
	})
}
