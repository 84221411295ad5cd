// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
包 llm 提供群聊 agent 使用的补全接入层。

# 核心接口

  - [Completer]：Complete(ctx, CompletionRequest) 返回文本、token 与成本。
    对上层是黑盒，可能失败或超时。
  - [CompleterFunc]：函数适配器，便于测试注入。

# 实现

  - [OpenAICompatClient]：调用 OpenAI 兼容的 /v1/chat/completions 接口，
    按 [Pricing] 计算成本。限流（429）、5xx 与网络错误会被标记为可重试。
  - [RetryingCompleter]：包装任意 Completer，按 llm/retry 的指数退避策略
    重试可重试错误；ctx 结束时立即返回。

# 日志

补全完成时以 Debug 级别记录模型、token 与成本；ctx 中带有会话 ID 与
agent 名称（types.WithConversationID / types.WithAgentName）时一并记录。
*/
package llm
