// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package main 提供 Convergio 服务端程序入口。

# 概述

cmd/convergio 组装多 agent 群聊、每轮上下文注入、冲突检测与
选择指标，并通过 HTTP API 对外提供服务。子命令包括 serve、
migrate、version 和 health。

# 核心类型

  - Server       - 组装全部组件，负责路由注册与优雅关闭
  - ServerOption - 替换 LLM 客户端、Redis 或数据库（测试使用）
  - Middleware   - HTTP 中间件函数签名 func(http.Handler) http.Handler

# 中间件链

Recovery → RequestID → SecurityHeaders → RequestLogger → OTelTracing（启用遥测时）
→ Metrics（启用指标时）。Metrics 中间件把会话 ID 归一化为 :id 以控制标签基数。

# 降级

Redis 不可用时使用进程内事实存储与本地缓存；数据库不可用时选择决策只保存在内存。

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
