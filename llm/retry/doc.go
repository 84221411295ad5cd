// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package retry 提供指数退避重试。

默认只重试 WrapRetryable 包装过的错误（限流、5xx、网络中断），
其余错误原样返回。等待期间 ctx 结束会立即返回，错误链中保留 ctx.Err()。

	r := retry.New(retry.DefaultPolicy(), logger)
	c, err := retry.Do(ctx, r, func(ctx context.Context) (*llm.Completion, error) {
		return client.Complete(ctx, req)
	})
*/
package retry
