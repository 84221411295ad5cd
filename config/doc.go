// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

// Package config 提供 Convergio 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（CONVERGIO_*）的顺序合并，
// 覆盖服务、日志、Redis、数据库、遥测、指标、LLM、上下文注入、
// 冲突检测、选择指标、群聊与 agent 定义。
package config
