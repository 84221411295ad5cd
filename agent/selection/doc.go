// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package selection 记录群聊中每一次发言人选择，并计算会话级与系统级 KPI。

# 概述

Recorder 是显式构造的对象（不是全局单例），独占
conversation_id → ConversationMetrics 映射：

  - RecordSelection：追加一条 SelectionDecision，更新发言分布、
    去重发言人数、平均决策耗时与全局计数
  - EvaluateConversationQuality：按会话类型基线计算轮数缩减、
    综合质量分与估算节省成本；每个会话只能评估一次
  - GetKPIDashboard：平均轮数缩减、平均质量、总节省、各 agent
    选择率与平均质量、最近 10 个会话趋势、决策耗时 p50/p95/p99
  - ExportMetrics：把汇总与最近 20 个会话写成 JSON 文件

# 质量分

	0.4·resolution + min(0.3, 0.3·baseline/turns)
	    + min(0.2, 0.2·speakers/5) + 0.1·satisfaction

# 持久化

可选的 DecisionStore（GormDecisionStore，PostgreSQL/SQLite）保存每条
决策与评估结果。写入失败只记录日志，不影响会话。
*/
package selection
