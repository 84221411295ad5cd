// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、agent 发言、
发言人选择、会话质量、上下文注入、缓存与冲突检测。

# 核心类型

  - Collector：通过 promauto 注册到默认 registry，按 namespace 隔离。
    同时实现 selection.Observer、turncontext.Observer 与
    conversation.Observer，由 cmd/convergio 注入各组件。
*/
package metrics
