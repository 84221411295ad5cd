package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/convergio/agent/conflict"
	"github.com/BaSui01/convergio/agent/selection"
	"github.com/BaSui01/convergio/agent/turncontext"
	"github.com/BaSui01/convergio/types"
)

const instrumentationName = "github.com/BaSui01/convergio/agent/conversation"

// 结束原因
const (
	ReasonAgentTerminated = "agent_terminated"
	ReasonMaxTurns        = "max_turns"
	ReasonTooManyFailures = "too_many_failures"
	ReasonSelectionFailed = "selection_failed"
	ReasonTimeout         = "timeout"
	ReasonCancelled       = "cancelled"
)

// 运行错误
var (
	ErrEmptyMessage       = errors.New("conversation: empty message")
	ErrConversationExists = errors.New("conversation: id already used")
)

// Config 群聊配置
type Config struct {
	MaxTurns               int           `yaml:"max_turns" json:"max_turns"`
	Timeout                time.Duration `yaml:"timeout" json:"timeout"`
	TerminationWords       []string      `yaml:"termination_words" json:"termination_words"`
	ConflictWindow         int           `yaml:"conflict_window" json:"conflict_window"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
	ConversationType       string        `yaml:"conversation_type" json:"conversation_type"`
	// 结束后释放注入器中该会话的状态，审计记录保留在 Result 中
	ReleaseContext bool `yaml:"release_context" json:"release_context"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxTurns:               6,
		Timeout:                5 * time.Minute,
		TerminationWords:       []string{"TERMINATE", "DONE", "EXIT"},
		ConflictWindow:         6,
		MaxConsecutiveFailures: 3,
		ConversationType:       selection.TypeAnalysis,
		ReleaseContext:         true,
	}
}

// RunRequest 一次群聊请求
type RunRequest struct {
	ConversationID   string `json:"conversation_id,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	Message          string `json:"message"`
	ConversationType string `json:"conversation_type,omitempty"`
	MaxTurns         int    `json:"max_turns,omitempty"`
}

// Result 群聊结果
type Result struct {
	ConversationID    string                         `json:"conversation_id"`
	Turns             []types.TurnRecord             `json:"turns"`
	Conflicts         []conflict.Conflict            `json:"conflicts"`
	TotalTokens       int                            `json:"total_tokens"`
	TotalCost         float64                        `json:"total_cost"`
	AgentTurns        int                            `json:"agent_turns"`
	FailedTurns       int                            `json:"failed_turns"`
	TerminationReason string                         `json:"termination_reason"`
	Resolved          bool                           `json:"resolved"`
	Quality           *selection.QualitySummary      `json:"quality,omitempty"`
	InjectedContext   []turncontext.TurnHistoryEntry `json:"injected_context,omitempty"`
	StartTime         time.Time                      `json:"start_time"`
	EndTime           time.Time                      `json:"end_time"`
}

// Observer 轮次与冲突观察者，metrics.Collector 满足该接口
type Observer interface {
	ObserveTurn(agent, status string, duration time.Duration, tokens int, cost float64)
	ObserveConflicts(conflictType string, n int)
}

// Option 构造选项
type Option func(*GroupChat)

// WithSelector 设置发言人选择器，默认 ExpertiseSelector
func WithSelector(s SpeakerSelector) Option {
	return func(g *GroupChat) {
		if s != nil {
			g.selector = s
		}
	}
}

// WithInjector 设置每轮上下文注入器
func WithInjector(i *turncontext.Injector) Option {
	return func(g *GroupChat) { g.injector = i }
}

// WithRecorder 设置选择指标记录器
func WithRecorder(r *selection.Recorder) Option {
	return func(g *GroupChat) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithDetector 设置冲突检测器
func WithDetector(d *conflict.Detector) Option {
	return func(g *GroupChat) {
		if d != nil {
			g.detector = d
		}
	}
}

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(g *GroupChat) { g.observer = o }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(g *GroupChat) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// GroupChat 多 agent 群聊编排器。
// 每轮：选择发言人 → 注入上下文 → 调用模型 → 记录决策 → 追加历史 → 冲突检测。
type GroupChat struct {
	agents   []ConversationAgent
	config   Config
	selector SpeakerSelector
	injector *turncontext.Injector
	recorder *selection.Recorder
	detector *conflict.Detector
	observer Observer
	locks    *KeyedMutex
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewGroupChat 创建群聊编排器
func NewGroupChat(agents []ConversationAgent, config Config, opts ...Option) *GroupChat {
	def := DefaultConfig()
	if config.MaxTurns <= 0 {
		config.MaxTurns = def.MaxTurns
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if len(config.TerminationWords) == 0 {
		config.TerminationWords = def.TerminationWords
	}
	if config.ConflictWindow <= 0 {
		config.ConflictWindow = def.ConflictWindow
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if config.ConversationType == "" {
		config.ConversationType = def.ConversationType
	}

	g := &GroupChat{
		agents:   agents,
		config:   config,
		selector: NewExpertiseSelector(),
		recorder: selection.NewRecorder(selection.DefaultConfig()),
		detector: conflict.NewDetector(nil),
		locks:    NewKeyedMutex(),
		tracer:   otel.Tracer(instrumentationName),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("component", "group_chat"))
	return g
}

// Agents 参与者
func (g *GroupChat) Agents() []ConversationAgent {
	return append([]ConversationAgent(nil), g.agents...)
}

// Recorder 选择指标记录器
func (g *GroupChat) Recorder() *selection.Recorder { return g.recorder }

// Run 运行一次群聊。同一会话 ID 的调用串行执行。
// 超时或取消时返回已完成部分的结果以及 ctx 错误。
func (g *GroupChat) Run(ctx context.Context, req RunRequest) (*Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if len(g.agents) == 0 {
		return nil, ErrNoAgents
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	if req.ConversationType == "" {
		req.ConversationType = g.config.ConversationType
	}
	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = g.config.MaxTurns
	}

	unlock := g.locks.Lock(req.ConversationID)
	defer unlock()

	if g.recorder.Known(req.ConversationID) {
		return nil, fmt.Errorf("%w: %s", ErrConversationExists, req.ConversationID)
	}

	ctx, span := g.tracer.Start(ctx, "conversation.run", trace.WithAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.String("conversation.type", req.ConversationType),
		attribute.Int("conversation.max_turns", maxTurns),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()
	ctx = types.WithConversationID(ctx, req.ConversationID)
	if req.UserID != "" {
		ctx = types.WithUserID(ctx, req.UserID)
	}

	log := g.logger.With(zap.String("conversation_id", req.ConversationID))
	log.Info("conversation started", zap.Int("agents", len(g.agents)), zap.Int("max_turns", maxTurns))

	result := &Result{
		ConversationID: req.ConversationID,
		Turns:          []types.TurnRecord{{Turn: 1, Agent: "user", Role: types.RoleUser, Content: req.Message}},
		Conflicts:      []conflict.Conflict{},
		StartTime:      time.Now(),
	}
	seen := make(map[string]struct{})
	failures := 0
	var runErr error

	for turn := 1; turn <= maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			result.TerminationReason = ReasonCancelled
			if errors.Is(err, context.DeadlineExceeded) {
				result.TerminationReason = ReasonTimeout
			}
			break
		}

		history := result.Turns
		latest := history[len(history)-1]
		turnNumber := latest.Turn + 1
		phase := MissionPhase(turn, maxTurns)
		intent := ClassifyIntent(latest.Content)

		started := time.Now()
		sel, err := g.selector.Select(ctx, SelectionInput{
			ConversationID: req.ConversationID,
			Turn:           turnNumber,
			Request:        req.Message,
			Message:        latest.Content,
			MissionPhase:   phase,
			Agents:         g.agents,
			History:        history,
		})
		if err != nil || sel == nil || sel.Agent == nil {
			log.Warn("speaker selection failed", zap.Int("turn", turnNumber), zap.Error(err))
			result.TerminationReason = ReasonSelectionFailed
			break
		}
		decisionMs := float64(time.Since(started).Microseconds()) / 1000
		speaker := sel.Agent

		prompt := buildPrompt(req.Message, latest, speaker.Name())
		if g.injector != nil {
			prompt = g.injector.InjectContextForTurn(ctx, turncontext.TurnRequest{
				ConversationID: req.ConversationID,
				UserID:         req.UserID,
				AgentName:      speaker.Name(),
				TurnNumber:     turnNumber,
				CurrentMessage: prompt,
				History:        history,
			})
		}

		replyStart := time.Now()
		reply, err := speaker.Reply(types.WithAgentName(ctx, speaker.Name()), prompt, history)
		replyDur := time.Since(replyStart)
		if err != nil || reply == nil {
			if err == nil {
				err = errors.New("empty reply")
			}
			failures++
			result.FailedTurns++
			g.observeTurn(speaker.Name(), "error", replyDur, 0, 0)
			log.Warn("agent reply failed",
				zap.String("agent", speaker.Name()),
				zap.Int("turn", turnNumber),
				zap.Int("consecutive_failures", failures),
				zap.Error(err),
			)
			if failures >= g.config.MaxConsecutiveFailures {
				result.TerminationReason = ReasonTooManyFailures
				break
			}
			continue
		}
		failures = 0

		// 只有成功发言的轮次才记入选择指标，失败重试不会重复记录同一轮
		success := true
		g.recorder.RecordSelection(ctx, selection.SelectionDecision{
			Timestamp:          started,
			TurnNumber:         turnNumber,
			ConversationID:     req.ConversationID,
			SelectedAgent:      speaker.Name(),
			SelectionRationale: sel.Rationale,
			ScoringFactors:     sel.ScoringFactors,
			CandidateScores:    sel.CandidateScores,
			DecisionTimeMs:     decisionMs,
			MissionPhase:       phase,
			MessageIntent:      intent,
			PreviousSpeakers:   types.Speakers(history),
			RAGHints:           sel.RAGHints,
			SuccessIndicator:   &success,
		})

		result.Turns = append(result.Turns, types.TurnRecord{
			Turn:    turnNumber,
			Agent:   speaker.Name(),
			Role:    types.RoleAgent,
			Content: reply.Text,
		})
		result.AgentTurns++
		result.TotalTokens += reply.TotalTokens()
		result.TotalCost += reply.Cost
		g.observeTurn(speaker.Name(), "success", replyDur, reply.TotalTokens(), reply.Cost)

		g.collectConflicts(result, seen, log)

		if g.shouldTerminate(reply.Text) {
			result.TerminationReason = ReasonAgentTerminated
			result.Resolved = true
			break
		}
	}
	if result.TerminationReason == "" {
		result.TerminationReason = ReasonMaxTurns
	}
	result.EndTime = time.Now()

	if _, ok := g.recorder.Conversation(req.ConversationID); ok {
		summary, err := g.recorder.EvaluateConversationQuality(ctx, req.ConversationID, result.Resolved, nil, req.ConversationType)
		if err != nil {
			log.Warn("quality evaluation failed", zap.Error(err))
		}
		result.Quality = summary
	}
	if g.injector != nil {
		result.InjectedContext = g.injector.TurnHistory(req.ConversationID)
		if g.config.ReleaseContext {
			g.injector.ClearConversation(ctx, req.ConversationID)
		}
	}

	span.SetAttributes(
		attribute.String("conversation.termination_reason", result.TerminationReason),
		attribute.Int("conversation.agent_turns", result.AgentTurns),
		attribute.Int("conversation.conflicts", len(result.Conflicts)),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	log.Info("conversation ended",
		zap.String("reason", result.TerminationReason),
		zap.Int("agent_turns", result.AgentTurns),
		zap.Int("failed_turns", result.FailedTurns),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Float64("cost", result.TotalCost),
	)
	return result, runErr
}

// collectConflicts 检测窗口内的冲突，同一冲突只报告一次
func (g *GroupChat) collectConflicts(result *Result, seen map[string]struct{}, log *zap.Logger) {
	found := g.detector.Detect(result.Turns, g.config.ConflictWindow)
	counts := make(map[conflict.ConflictType]int)
	for _, c := range found {
		key := c.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result.Conflicts = append(result.Conflicts, c)
		counts[c.Type]++
		log.Info("conflict detected",
			zap.Ints("turns", c.Turns[:]),
			zap.Strings("terms", c.Terms[:]),
			zap.Strings("agents", c.Agents[:]),
		)
	}
	if g.observer != nil {
		for t, n := range counts {
			g.observer.ObserveConflicts(string(t), n)
		}
	}
}

func (g *GroupChat) observeTurn(agent, status string, d time.Duration, tokens int, cost float64) {
	if g.observer != nil {
		g.observer.ObserveTurn(agent, status, d, tokens, cost)
	}
}

// shouldTerminate 回复中任一独立词与终止词完全一致（区分大小写）
func (g *GroupChat) shouldTerminate(content string) bool {
	for _, field := range strings.Fields(content) {
		field = strings.Trim(field, ".,;:!?\"'()[]")
		for _, word := range g.config.TerminationWords {
			if field == word {
				return true
			}
		}
	}
	return false
}

// buildPrompt 第一轮直接回应用户，之后回应上一位发言人
func buildPrompt(request string, latest types.TurnRecord, speaker string) string {
	if latest.Role == types.RoleUser {
		return request
	}
	return fmt.Sprintf("User request: %s\n\nLatest contribution from %s:\n%s\n\nAs %s, add your perspective. Say TERMINATE when the group has reached a conclusion.",
		request, latest.Agent, latest.Content, speaker)
}
