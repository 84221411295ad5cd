// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

// Package api 定义 Convergio HTTP API 的请求与响应结构。
//
// # API 概览
//
//	POST /api/v1/conversations                  发起群聊
//	GET  /api/v1/conversations/{id}             群聊结果
//	GET  /api/v1/conversations/{id}/metrics     选择指标
//	POST /api/v1/conversations/{id}/evaluate    质量评估
//	GET  /api/v1/agents                         参与 agent
//	POST /api/v1/conflicts                      冲突检测
//	POST /api/v1/facts                          记录用户事实
//	GET  /api/v1/context/stats                  上下文注入统计
//	GET  /api/v1/kpi                            KPI 看板
//	POST /api/v1/kpi/export                     导出指标
//
// 所有响应使用 handlers.Response 包装：success + data/error + timestamp。
package api
