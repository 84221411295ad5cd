// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为 Convergio 的上下文注入与群聊编排提供 TracerProvider 和 MeterProvider。
// 禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
