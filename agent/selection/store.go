package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DecisionStore 选择决策与评估结果的持久化，用于离线回放
type DecisionStore interface {
	SaveDecision(ctx context.Context, d SelectionDecision) error
	SaveEvaluation(ctx context.Context, s QualitySummary) error
	Decisions(ctx context.Context, conversationID string) ([]SelectionDecision, error)
}

// DecisionRecord 选择决策表
type DecisionRecord struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	ConversationID     string             `gorm:"size:64;not null;index:idx_conv_turn" json:"conversation_id"`
	TurnNumber         int                `gorm:"not null;index:idx_conv_turn" json:"turn_number"`
	SelectedAgent      string             `gorm:"size:100;not null;index" json:"selected_agent"`
	SelectionRationale map[string]any     `gorm:"serializer:json" json:"selection_rationale"`
	ScoringFactors     map[string]float64 `gorm:"serializer:json" json:"scoring_factors"`
	CandidateScores    map[string]float64 `gorm:"serializer:json" json:"candidate_scores"`
	DecisionTimeMs     float64            `json:"decision_time_ms"`
	MissionPhase       string             `gorm:"size:32" json:"mission_phase"`
	MessageIntent      string             `gorm:"size:32" json:"message_intent"`
	PreviousSpeakers   []string           `gorm:"serializer:json" json:"previous_speakers"`
	RAGHints           []string           `gorm:"serializer:json" json:"rag_hints"`
	SuccessIndicator   *bool              `json:"success_indicator"`
	DecidedAt          time.Time          `gorm:"not null" json:"decided_at"`
	CreatedAt          time.Time          `json:"created_at"`
}

// TableName 表名
func (DecisionRecord) TableName() string {
	return "convergio_selection_decisions"
}

// EvaluationRecord 会话质量评估表
type EvaluationRecord struct {
	ID                      uint           `gorm:"primaryKey" json:"id"`
	ConversationID          string         `gorm:"size:64;not null;uniqueIndex" json:"conversation_id"`
	ConversationType        string         `gorm:"size:32" json:"conversation_type"`
	TotalTurns              int            `json:"total_turns"`
	BaselineTurns           int            `json:"baseline_turns"`
	TurnReductionPercentage float64        `json:"turn_reduction_percentage"`
	QualityScore            float64        `json:"quality_score"`
	CostReduction           float64        `json:"cost_reduction"`
	UniqueSpeakers          int            `json:"unique_speakers"`
	SpeakerDistribution     map[string]int `gorm:"serializer:json" json:"speaker_distribution"`
	ResolutionAchieved      bool           `json:"resolution_achieved"`
	UserSatisfaction        *float64       `json:"user_satisfaction"`
	EvaluatedAt             time.Time      `gorm:"not null" json:"evaluated_at"`
}

// TableName 表名
func (EvaluationRecord) TableName() string {
	return "convergio_conversation_evaluations"
}

// GormDecisionStore 基于 GORM 的 DecisionStore，支持 PostgreSQL 与 SQLite
type GormDecisionStore struct {
	db *gorm.DB
}

// NewGormDecisionStore 创建存储
func NewGormDecisionStore(db *gorm.DB) *GormDecisionStore {
	return &GormDecisionStore{db: db}
}

// Migrate 自动迁移表结构
func (s *GormDecisionStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DecisionRecord{}, &EvaluationRecord{}); err != nil {
		return fmt.Errorf("failed to auto migrate selection tables: %w", err)
	}
	return nil
}

// SaveDecision 写入一条决策
func (s *GormDecisionStore) SaveDecision(ctx context.Context, d SelectionDecision) error {
	rec := DecisionRecord{
		ConversationID:     d.ConversationID,
		TurnNumber:         d.TurnNumber,
		SelectedAgent:      d.SelectedAgent,
		SelectionRationale: d.SelectionRationale,
		ScoringFactors:     d.ScoringFactors,
		CandidateScores:    d.CandidateScores,
		DecisionTimeMs:     d.DecisionTimeMs,
		MissionPhase:       d.MissionPhase,
		MessageIntent:      d.MessageIntent,
		PreviousSpeakers:   d.PreviousSpeakers,
		RAGHints:           d.RAGHints,
		SuccessIndicator:   d.SuccessIndicator,
		DecidedAt:          d.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// SaveEvaluation 写入评估结果，同一会话只允许一条
func (s *GormDecisionStore) SaveEvaluation(ctx context.Context, q QualitySummary) error {
	rec := EvaluationRecord{
		ConversationID:          q.ConversationID,
		ConversationType:        q.ConversationType,
		TotalTurns:              q.TotalTurns,
		BaselineTurns:           q.BaselineTurns,
		TurnReductionPercentage: q.TurnReductionPercentage,
		QualityScore:            q.QualityScore,
		CostReduction:           q.CostReduction,
		UniqueSpeakers:          q.UniqueSpeakers,
		SpeakerDistribution:     q.SpeakerDistribution,
		ResolutionAchieved:      q.ResolutionAchieved,
		UserSatisfaction:        q.UserSatisfaction,
		EvaluatedAt:             q.EvaluatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	return nil
}

// Decisions 按轮次顺序读取会话的全部决策
func (s *GormDecisionStore) Decisions(ctx context.Context, conversationID string) ([]SelectionDecision, error) {
	var recs []DecisionRecord
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("turn_number ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}

	out := make([]SelectionDecision, 0, len(recs))
	for _, rec := range recs {
		out = append(out, SelectionDecision{
			Timestamp:          rec.DecidedAt,
			TurnNumber:         rec.TurnNumber,
			ConversationID:     rec.ConversationID,
			SelectedAgent:      rec.SelectedAgent,
			SelectionRationale: rec.SelectionRationale,
			ScoringFactors:     rec.ScoringFactors,
			CandidateScores:    rec.CandidateScores,
			DecisionTimeMs:     rec.DecisionTimeMs,
			MissionPhase:       rec.MissionPhase,
			MessageIntent:      rec.MessageIntent,
			PreviousSpeakers:   rec.PreviousSpeakers,
			RAGHints:           rec.RAGHints,
			SuccessIndicator:   rec.SuccessIndicator,
		})
	}
	return out, nil
}

// Evaluation 读取会话评估结果，不存在时返回 ErrConversationNotFound
func (s *GormDecisionStore) Evaluation(ctx context.Context, conversationID string) (*EvaluationRecord, error) {
	var rec EvaluationRecord
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		return nil, fmt.Errorf("load evaluation: %w", err)
	}
	return &rec, nil
}
