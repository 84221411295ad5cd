package selection

import (
	"errors"
	"time"
)

// 查询错误
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAlreadyEvaluated     = errors.New("conversation already evaluated")
)

// ErrorMap 把查询错误转成 {"error": "..."} 形式，供 HTTP 层与日志使用
func ErrorMap(err error) map[string]any {
	if err == nil {
		return nil
	}
	return map[string]any{"error": err.Error()}
}

// 会话类型
const (
	TypeSimpleQuery     = "simple_query"
	TypeAnalysis        = "analysis"
	TypeStrategy        = "strategy"
	TypeComplexWorkflow = "complex_workflow"
)

// SelectionDecision 一次发言人选择的完整记录，创建后不可变
type SelectionDecision struct {
	Timestamp          time.Time          `json:"timestamp"`
	TurnNumber         int                `json:"turn_number"`
	ConversationID     string             `json:"conversation_id"`
	SelectedAgent      string             `json:"selected_agent"`
	SelectionRationale map[string]any     `json:"selection_rationale,omitempty"`
	ScoringFactors     map[string]float64 `json:"scoring_factors,omitempty"`
	CandidateScores    map[string]float64 `json:"candidate_scores,omitempty"`
	DecisionTimeMs     float64            `json:"decision_time_ms"`
	MissionPhase       string             `json:"mission_phase"`
	MessageIntent      string             `json:"message_intent"`
	PreviousSpeakers   []string           `json:"previous_speakers,omitempty"`
	RAGHints           []string           `json:"rag_hints,omitempty"`
	SuccessIndicator   *bool              `json:"success_indicator,omitempty"`
}

// ConversationMetrics 单个会话的聚合指标。
// 状态：首次记录时 Open，EvaluateConversationQuality 之后 Evaluated。
type ConversationMetrics struct {
	ConversationID          string              `json:"conversation_id"`
	StartTime               time.Time           `json:"start_time"`
	EndTime                 *time.Time          `json:"end_time,omitempty"`
	TotalTurns              int                 `json:"total_turns"`
	UniqueSpeakers          int                 `json:"unique_speakers"`
	SpeakerDistribution     map[string]int      `json:"speaker_distribution"`
	AvgSelectionTimeMs      float64             `json:"avg_selection_time_ms"`
	TurnReductionPercentage float64             `json:"turn_reduction_percentage"`
	BaselineTurns           int                 `json:"baseline_turns"`
	QualityScore            float64             `json:"quality_score"`
	CostReduction           float64             `json:"cost_reduction"`
	ConversationType        string              `json:"conversation_type,omitempty"`
	ResolutionAchieved      bool                `json:"resolution_achieved"`
	UserSatisfaction        *float64            `json:"user_satisfaction,omitempty"`
	Evaluated               bool                `json:"evaluated"`
	Decisions               []SelectionDecision `json:"decisions"`
}

// QualitySummary EvaluateConversationQuality 的结果
type QualitySummary struct {
	ConversationID          string         `json:"conversation_id"`
	ConversationType        string         `json:"conversation_type"`
	TotalTurns              int            `json:"total_turns"`
	BaselineTurns           int            `json:"baseline_turns"`
	TurnReductionPercentage float64        `json:"turn_reduction_percentage"`
	QualityScore            float64        `json:"quality_score"`
	CostReduction           float64        `json:"cost_reduction"`
	UniqueSpeakers          int            `json:"unique_speakers"`
	SpeakerDistribution     map[string]int `json:"speaker_distribution"`
	AvgSelectionTimeMs      float64        `json:"avg_selection_time_ms"`
	ResolutionAchieved      bool           `json:"resolution_achieved"`
	UserSatisfaction        *float64       `json:"user_satisfaction,omitempty"`
	DurationSeconds         float64        `json:"duration_seconds"`
	EvaluatedAt             time.Time      `json:"evaluated_at"`
}

// Map 字典视图
func (s *QualitySummary) Map() map[string]any {
	if s == nil {
		return nil
	}
	m := map[string]any{
		"conversation_id":           s.ConversationID,
		"conversation_type":         s.ConversationType,
		"total_turns":               s.TotalTurns,
		"baseline_turns":            s.BaselineTurns,
		"turn_reduction_percentage": s.TurnReductionPercentage,
		"quality_score":             s.QualityScore,
		"cost_reduction":            s.CostReduction,
		"unique_speakers":           s.UniqueSpeakers,
		"speaker_distribution":      s.SpeakerDistribution,
		"avg_selection_time_ms":     s.AvgSelectionTimeMs,
		"resolution_achieved":       s.ResolutionAchieved,
		"duration_seconds":          s.DurationSeconds,
	}
	if s.UserSatisfaction != nil {
		m["user_satisfaction"] = *s.UserSatisfaction
	}
	return m
}

// AgentEffectiveness 单个 agent 的选择统计
type AgentEffectiveness struct {
	Selections    int     `json:"selections"`
	SelectionRate float64 `json:"selection_rate"`
	AvgQuality    float64 `json:"avg_quality"`
	Conversations int     `json:"conversations"`
}

// TrendPoint 最近趋势中的一个会话
type TrendPoint struct {
	ConversationID          string    `json:"conversation_id"`
	StartTime               time.Time `json:"start_time"`
	TotalTurns              int       `json:"total_turns"`
	UniqueSpeakers          int       `json:"unique_speakers"`
	QualityScore            float64   `json:"quality_score"`
	TurnReductionPercentage float64   `json:"turn_reduction_percentage"`
	Evaluated               bool      `json:"evaluated"`
}

// DecisionTimePercentiles 决策耗时分位数（毫秒）
type DecisionTimePercentiles struct {
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// KPIDashboard 跨会话 KPI 汇总
type KPIDashboard struct {
	TotalConversations     int                           `json:"total_conversations"`
	EvaluatedConversations int                           `json:"evaluated_conversations"`
	TotalSelections        int                           `json:"total_selections"`
	AvgTurnReduction       float64                       `json:"avg_turn_reduction"`
	AvgQualityScore        float64                       `json:"avg_quality_score"`
	TotalCostSaved         float64                       `json:"total_cost_saved"`
	AgentEffectiveness     map[string]AgentEffectiveness `json:"agent_effectiveness"`
	RecentTrend            []TrendPoint                  `json:"recent_trend"`
	DecisionTime           DecisionTimePercentiles       `json:"decision_time_ms"`
	GeneratedAt            time.Time                     `json:"generated_at"`
}
