package selection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/convergio/internal/cache"
)

// Config 选择指标配置
type Config struct {
	// 每轮估算成本（美元），用于 cost_reduction
	CostPerTurn float64 `yaml:"cost_per_turn" json:"cost_per_turn"`
	// 各会话类型的基线轮数
	BaselineTurns map[string]int `yaml:"baseline_turns" json:"baseline_turns"`
	// 未知会话类型的基线轮数
	DefaultBaseline int `yaml:"default_baseline" json:"default_baseline"`
	// 保留的最大会话数，0 表示不限制；超出时淘汰最早的已评估会话
	MaxConversations int `yaml:"max_conversations" json:"max_conversations"`
	// 持久化单次写入超时
	StoreTimeout time.Duration `yaml:"store_timeout" json:"store_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		CostPerTurn: 0.10,
		BaselineTurns: map[string]int{
			TypeSimpleQuery:     3,
			TypeAnalysis:        8,
			TypeStrategy:        12,
			TypeComplexWorkflow: 20,
		},
		DefaultBaseline:  10,
		MaxConversations: 10000,
		StoreTimeout:     2 * time.Second,
	}
}

// 质量分权重
const (
	weightResolution   = 0.4
	weightEfficiency   = 0.3
	weightDiversity    = 0.2
	weightSatisfaction = 0.1

	diversityTarget = 5.0
)

// Observer 选择与评估事件观察者，metrics.Collector 满足该接口
type Observer interface {
	ObserveSelection(agent, missionPhase string, decisionTimeMs float64)
	ObserveEvaluation(conversationType string, quality, turnReduction, costReduction float64)
}

// Option 构造选项
type Option func(*Recorder)

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observer = o }
}

// WithStore 设置决策持久化
func WithStore(s DecisionStore) Option {
	return func(r *Recorder) { r.store = s }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type agentStats struct {
	selections    int
	qualitySum    float64
	conversations int
}

// Recorder 记录每一次发言人选择并计算会话与全局 KPI。
// 持有 conversation_id → ConversationMetrics 的独占映射，并发安全。
type Recorder struct {
	config   Config
	observer Observer
	store    DecisionStore
	logger   *zap.Logger

	mu              sync.RWMutex
	conversations   map[string]*ConversationMetrics
	order           []string
	totalSelections int
	agents          map[string]*agentStats
	// 已淘汰的会话 ID，防止被重新使用
	retired *cache.LRU[struct{}]
}

// NewRecorder 创建指标记录器
func NewRecorder(config Config, opts ...Option) *Recorder {
	def := DefaultConfig()
	if config.CostPerTurn <= 0 {
		config.CostPerTurn = def.CostPerTurn
	}
	if len(config.BaselineTurns) == 0 {
		config.BaselineTurns = def.BaselineTurns
	}
	if config.DefaultBaseline <= 0 {
		config.DefaultBaseline = def.DefaultBaseline
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = def.StoreTimeout
	}

	r := &Recorder{
		config:        config,
		logger:        zap.NewNop(),
		conversations: make(map[string]*ConversationMetrics),
		agents:        make(map[string]*agentStats),
		retired:       newRetiredSet(config.MaxConversations),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "selection_recorder"))
	return r
}

// BaselineTurns 返回会话类型的基线轮数，空类型按 analysis 处理
func (r *Recorder) BaselineTurns(conversationType string) int {
	if conversationType == "" {
		conversationType = TypeAnalysis
	}
	if b, ok := r.config.BaselineTurns[conversationType]; ok && b > 0 {
		return b
	}
	return r.config.DefaultBaseline
}

// RecordSelection 追加一条选择记录。非幂等，同一轮不要调用两次。
func (r *Recorder) RecordSelection(ctx context.Context, d SelectionDecision) {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	d = cloneDecision(d)

	r.mu.Lock()
	m, ok := r.conversations[d.ConversationID]
	if !ok {
		m = &ConversationMetrics{
			ConversationID:      d.ConversationID,
			StartTime:           d.Timestamp,
			SpeakerDistribution: make(map[string]int),
		}
		r.conversations[d.ConversationID] = m
		r.order = append(r.order, d.ConversationID)
		r.evictLocked()
	}

	m.Decisions = append(m.Decisions, d)
	m.TotalTurns = len(m.Decisions)
	m.SpeakerDistribution[d.SelectedAgent]++
	m.UniqueSpeakers = len(m.SpeakerDistribution)
	m.AvgSelectionTimeMs += (d.DecisionTimeMs - m.AvgSelectionTimeMs) / float64(m.TotalTurns)

	r.totalSelections++
	st := r.agents[d.SelectedAgent]
	if st == nil {
		st = &agentStats{}
		r.agents[d.SelectedAgent] = st
	}
	st.selections++
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.ObserveSelection(d.SelectedAgent, d.MissionPhase, d.DecisionTimeMs)
	}
	if r.store != nil {
		sctx, cancel := r.storeContext(ctx)
		defer cancel()
		if err := r.store.SaveDecision(sctx, d); err != nil {
			r.logger.Warn("persist selection decision failed",
				zap.String("conversation_id", d.ConversationID),
				zap.Int("turn", d.TurnNumber),
				zap.Error(err),
			)
		}
	}
}

// EvaluateConversationQuality 计算会话质量并将其定稿。
// 未知会话返回 ErrConversationNotFound；重复评估返回 ErrAlreadyEvaluated。
func (r *Recorder) EvaluateConversationQuality(ctx context.Context, conversationID string, resolutionAchieved bool, userSatisfaction *float64, conversationType string) (*QualitySummary, error) {
	if conversationType == "" {
		conversationType = TypeAnalysis
	}
	baseline := r.BaselineTurns(conversationType)

	r.mu.Lock()
	m, ok := r.conversations[conversationID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if m.Evaluated {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyEvaluated, conversationID)
	}

	now := time.Now()
	var sat *float64
	if userSatisfaction != nil {
		v := *userSatisfaction
		sat = &v
	}

	m.EndTime = &now
	m.ConversationType = conversationType
	m.BaselineTurns = baseline
	m.TurnReductionPercentage = TurnReduction(baseline, m.TotalTurns)
	m.QualityScore = QualityScore(resolutionAchieved, baseline, m.TotalTurns, m.UniqueSpeakers, sat)
	m.CostReduction = float64(baseline-m.TotalTurns) * r.config.CostPerTurn
	m.ResolutionAchieved = resolutionAchieved
	m.UserSatisfaction = sat
	m.Evaluated = true

	// 每个发言过的 agent 都累计本会话质量分
	for agent := range m.SpeakerDistribution {
		st := r.agents[agent]
		if st == nil {
			st = &agentStats{}
			r.agents[agent] = st
		}
		st.qualitySum += m.QualityScore
		st.conversations++
	}

	summary := &QualitySummary{
		ConversationID:          m.ConversationID,
		ConversationType:        conversationType,
		TotalTurns:              m.TotalTurns,
		BaselineTurns:           baseline,
		TurnReductionPercentage: m.TurnReductionPercentage,
		QualityScore:            m.QualityScore,
		CostReduction:           m.CostReduction,
		UniqueSpeakers:          m.UniqueSpeakers,
		SpeakerDistribution:     copyDistribution(m.SpeakerDistribution),
		AvgSelectionTimeMs:      m.AvgSelectionTimeMs,
		ResolutionAchieved:      resolutionAchieved,
		UserSatisfaction:        sat,
		DurationSeconds:         now.Sub(m.StartTime).Seconds(),
		EvaluatedAt:             now,
	}
	r.mu.Unlock()

	r.logger.Info("conversation evaluated",
		zap.String("conversation_id", conversationID),
		zap.String("type", conversationType),
		zap.Int("turns", summary.TotalTurns),
		zap.Float64("quality", summary.QualityScore),
		zap.Float64("turn_reduction", summary.TurnReductionPercentage),
	)

	if r.observer != nil {
		r.observer.ObserveEvaluation(conversationType, summary.QualityScore, summary.TurnReductionPercentage, summary.CostReduction)
	}
	if r.store != nil {
		sctx, cancel := r.storeContext(ctx)
		defer cancel()
		if err := r.store.SaveEvaluation(sctx, *summary); err != nil {
			r.logger.Warn("persist evaluation failed", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	return summary, nil
}

// Conversation 返回会话指标副本
func (r *Recorder) Conversation(conversationID string) (*ConversationMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.conversations[conversationID]
	if !ok {
		return nil, false
	}
	return cloneMetrics(m, -1), true
}

// Known 会话是否出现过，包括已被淘汰的会话
func (r *Recorder) Known(conversationID string) bool {
	r.mu.RLock()
	_, ok := r.conversations[conversationID]
	r.mu.RUnlock()
	if ok {
		return true
	}
	_, ok = r.retired.Get(conversationID)
	return ok
}

// Reset 清空全部状态
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations = make(map[string]*ConversationMetrics)
	r.order = nil
	r.totalSelections = 0
	r.agents = make(map[string]*agentStats)
	r.retired.Clear()
}

func newRetiredSet(maxConversations int) *cache.LRU[struct{}] {
	if maxConversations <= 0 {
		maxConversations = DefaultConfig().MaxConversations
	}
	return cache.NewLRU[struct{}](maxConversations, 0)
}

// evictLocked 超出容量时淘汰最早的已评估会话，未评估的会话不会被淘汰。
// 被淘汰会话的选择次数与质量分同时从全局统计中扣除，看板只反映保留的会话。
func (r *Recorder) evictLocked() {
	if r.config.MaxConversations <= 0 {
		return
	}
	for len(r.order) > r.config.MaxConversations {
		idx := -1
		for i, id := range r.order {
			if r.conversations[id].Evaluated {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		id := r.order[idx]
		r.forgetLocked(r.conversations[id])
		delete(r.conversations, id)
		r.order = append(r.order[:idx], r.order[idx+1:]...)
		r.retired.Set(id, struct{}{})
	}
}

func (r *Recorder) forgetLocked(m *ConversationMetrics) {
	r.totalSelections -= len(m.Decisions)
	for agent, n := range m.SpeakerDistribution {
		st := r.agents[agent]
		if st == nil {
			continue
		}
		st.selections -= n
		if m.Evaluated {
			st.qualitySum -= m.QualityScore
			st.conversations--
		}
		if st.selections <= 0 && st.conversations <= 0 {
			delete(r.agents, agent)
		}
	}
}

func (r *Recorder) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), r.config.StoreTimeout)
}

// TurnReduction (baseline - total) / baseline * 100
func TurnReduction(baseline, total int) float64 {
	if baseline <= 0 {
		return 0
	}
	return float64(baseline-total) / float64(baseline) * 100
}

// QualityScore 计算综合质量分，结果位于 [0, 1]
func QualityScore(resolutionAchieved bool, baseline, total, uniqueSpeakers int, userSatisfaction *float64) float64 {
	score := 0.0
	if resolutionAchieved {
		score += weightResolution
	}
	if total > 0 && baseline > 0 {
		score += math.Min(weightEfficiency, weightEfficiency*float64(baseline)/float64(total))
	}
	if uniqueSpeakers > 0 {
		score += math.Min(weightDiversity, weightDiversity*float64(uniqueSpeakers)/diversityTarget)
	}
	if userSatisfaction != nil {
		score += weightSatisfaction * clamp01(*userSatisfaction)
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func cloneDecision(d SelectionDecision) SelectionDecision {
	if d.SelectionRationale != nil {
		m := make(map[string]any, len(d.SelectionRationale))
		for k, v := range d.SelectionRationale {
			m[k] = v
		}
		d.SelectionRationale = m
	}
	d.ScoringFactors = copyFloats(d.ScoringFactors)
	d.CandidateScores = copyFloats(d.CandidateScores)
	d.PreviousSpeakers = append([]string(nil), d.PreviousSpeakers...)
	d.RAGHints = append([]string(nil), d.RAGHints...)
	if d.SuccessIndicator != nil {
		v := *d.SuccessIndicator
		d.SuccessIndicator = &v
	}
	return d
}

// cloneMetrics 深拷贝会话指标，maxDecisions < 0 表示保留全部决策
func cloneMetrics(m *ConversationMetrics, maxDecisions int) *ConversationMetrics {
	out := *m
	out.SpeakerDistribution = copyDistribution(m.SpeakerDistribution)
	if m.EndTime != nil {
		t := *m.EndTime
		out.EndTime = &t
	}
	if m.UserSatisfaction != nil {
		v := *m.UserSatisfaction
		out.UserSatisfaction = &v
	}
	decisions := m.Decisions
	if maxDecisions >= 0 && len(decisions) > maxDecisions {
		decisions = decisions[:maxDecisions]
	}
	out.Decisions = make([]SelectionDecision, len(decisions))
	for i, d := range decisions {
		out.Decisions[i] = cloneDecision(d)
	}
	return &out
}

func copyDistribution(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFloats(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
