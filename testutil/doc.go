// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 Convergio 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现
相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertTurnsEqual / AssertJSONEqual
  - 异步断言: AssertEventuallyTrue，超时轮询等待条件满足
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockCompleter（LLM 补全）与 MockContextBuilder
    （记忆上下文构建），均支持 Builder 模式、错误注入与调用记录
  - testutil/fixtures: 对话轮次、冲突历史与补全结果样例

# 使用示例

	ctx := testutil.TestContext(t)
	completer := mocks.NewMockCompleter().WithReplies("Budget approved. TERMINATE")
	c, err := completer.Complete(ctx, llm.CompletionRequest{Prompt: "budget?"})
*/
package testutil
