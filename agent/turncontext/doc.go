// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package turncontext 在多 agent 会话的每一轮发言前注入检索上下文。

# 概述

Injector 根据 (会话, agent, 轮次, 消息) 调用 memory.ContextBuilder，
把事实、相关历史与洞察拼接到原消息之后，并附带基于 agent 名称推断的
Focus Area 提示与最近的 scratchpad 记录。

# 缓存

结果先写入本地 LRU（容量与 TTL 可配置），可选写入 Redis 二级缓存。
同一 key 的并发未命中通过 singleflight 合并为一次检索，检索不随
单个调用方取消，只受 RetrievalTimeout 约束。
降级结果不会被缓存。

# 降级

检索失败、超时、panic 或返回空上下文时，InjectContextForTurn 返回
原消息加领域提示，记录 warn 日志与失败计数，不会中断会话。
*/
package turncontext
