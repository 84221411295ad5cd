// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 Convergio HTTP API 的请求处理器。

# 核心类型

  - ConversationHandler - 发起群聊、查询结果与选择指标、质量评估
  - KPIHandler          - KPI 看板与指标导出
  - ConflictHandler     - 对任意历史做冲突检测
  - ContextHandler      - 记录用户事实、查询注入统计
  - HealthHandler       - /health 存活与 /ready 依赖检查
  - Response            - 统一 JSON 响应结构

领域错误映射为 ErrorCode：未知会话为 NOT_FOUND，重复评估或
会话 ID 冲突为 CONFLICT，群聊超时返回已完成部分的结果。
*/
package handlers
