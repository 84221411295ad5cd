package api

import (
	"time"

	"github.com/BaSui01/convergio/agent/conflict"
)

// =============================================================================
// 💬 群聊
// =============================================================================

// StartConversationRequest 发起一次群聊
type StartConversationRequest struct {
	// 会话 ID，留空时自动生成
	ConversationID string `json:"conversation_id,omitempty"`
	// 用户 ID，用于检索该用户的事实
	UserID string `json:"user_id,omitempty"`
	// 用户消息
	Message string `json:"message"`
	// 会话类型：simple_query, analysis, strategy, complex_workflow
	ConversationType string `json:"conversation_type,omitempty"`
	// 本次最多 agent 轮数，0 使用配置值
	MaxTurns int `json:"max_turns,omitempty"`
}

// EvaluateConversationRequest 会话质量评估
type EvaluateConversationRequest struct {
	// 是否解决了用户问题
	ResolutionAchieved bool `json:"resolution_achieved"`
	// 用户满意度 [0,1]，可选
	UserSatisfaction *float64 `json:"user_satisfaction,omitempty"`
	// 会话类型，留空按 analysis 计算基线
	ConversationType string `json:"conversation_type,omitempty"`
}

// AgentInfo agent 概要
type AgentInfo struct {
	Name      string   `json:"name"`
	Expertise []string `json:"expertise"`
}

// =============================================================================
// ⚔️ 冲突检测
// =============================================================================

// DetectConflictsRequest 冲突检测请求，history 为松散结构的轮次
type DetectConflictsRequest struct {
	History []map[string]any `json:"history"`
	// 扫描最近多少轮，省略时使用配置值，0 表示不扫描
	Window *int `json:"window,omitempty"`
}

// DetectConflictsResponse 冲突检测结果
type DetectConflictsResponse struct {
	Conflicts []conflict.Conflict `json:"conflicts"`
	Window    int                 `json:"window"`
}

// =============================================================================
// 🧠 记忆与指标
// =============================================================================

// RememberFactRequest 为用户记录一条事实
type RememberFactRequest struct {
	UserID string `json:"user_id"`
	Fact   string `json:"fact"`
}

// ExportResponse 指标导出结果
type ExportResponse struct {
	Path       string    `json:"path"`
	ExportedAt time.Time `json:"exported_at"`
}
