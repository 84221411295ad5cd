// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
包 memory 定义每轮上下文注入所依赖的记忆/RAG 构建能力，并提供一个
基于 Redis 的参考实现。

# 核心接口

  - [ContextBuilder]：BuildMemoryContext(ctx, Request) 返回 [Context]，
    允许失败或超时，调用方负责降级。
  - [ContextBuilderFunc]：函数适配器，便于测试注入。

# 参考实现

[RedisContextBuilder] 将用户事实保存在有界 Redis 列表中
（memory:facts:<user>），按关键词 Jaccard 相似度排序并按
SimilarityThreshold / MaxFacts 过滤；同时从对话历史中挑选与当前
消息相关的轮次，并生成发言人概览类的 Insights。

# 事实存储

[FactStore] 只要求 AppendBounded 与 Range 两个操作，internal/cache.Manager
直接满足。未启用 Redis 时使用 [InMemoryFactStore]：进程内有界列表，
支持 TTL 与按最久未更新淘汰 key（MaxKeys）。
*/
package memory
