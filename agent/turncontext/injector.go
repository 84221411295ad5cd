package turncontext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/convergio/agent/memory"
	"github.com/BaSui01/convergio/internal/cache"
	"github.com/BaSui01/convergio/types"
)

const instrumentationName = "github.com/BaSui01/convergio/agent/turncontext"

// 注入结果，用于指标与 span 属性
const (
	OutcomeDisabled = "disabled"
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeDegraded = "degraded"
)

const cacheType = "turn_context"

var errEmptyContext = errors.New("memory context is empty")

// Config 每轮上下文注入配置
type Config struct {
	// 总开关；关闭时原样返回消息且不调用检索
	Enabled bool `yaml:"in_loop_enabled" json:"in_loop_enabled"`
	// 每轮最多注入的事实条数
	MaxFacts int `yaml:"max_facts" json:"max_facts"`
	// 事实相似度阈值
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	// 本地缓存容量（条）
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity"`
	// 缓存条目存活时间，0 表示不过期
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	// 每个会话保留的 turn history / scratchpad 条数
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`
	// 单次检索超时
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout" json:"retrieval_timeout"`
	// 渲染进消息的 scratchpad 条数
	ScratchpadWindow int `yaml:"scratchpad_window" json:"scratchpad_window"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MaxFacts:            5,
		SimilarityThreshold: 0.3,
		CacheCapacity:       1024,
		CacheTTL:            30 * time.Minute,
		HistoryLimit:        50,
		RetrievalTimeout:    2 * time.Second,
		ScratchpadWindow:    3,
	}
}

// TurnRequest 一次注入请求
type TurnRequest struct {
	ConversationID string
	UserID         string
	AgentName      string
	TurnNumber     int
	CurrentMessage string
	History        []types.TurnRecord
}

// TurnHistoryEntry 记录某一轮注入了哪些上下文，供审计与调试
type TurnHistoryEntry struct {
	Turn            int       `json:"turn"`
	Agent           string    `json:"agent"`
	ContextFacts    []string  `json:"context_facts"`
	ContextHistory  []string  `json:"context_history"`
	ContextInsights []string  `json:"context_insights"`
	InjectedAt      time.Time `json:"injected_at"`
}

// Stats 注入统计
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Failures  uint64  `json:"failures"`
	Bypassed  uint64  `json:"bypassed"`
	HitRate   float64 `json:"hit_rate"`
	CacheSize int     `json:"cache_size"`
}

// Observer 注入指标观察者，metrics.Collector 满足该接口
type Observer interface {
	ObserveInjection(outcome string, duration time.Duration)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// SharedCache 跨进程二级缓存，cache.Manager 满足该接口
type SharedCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Option 构造选项
type Option func(*Injector)

// WithSharedCache 启用 Redis 二级缓存
func WithSharedCache(c SharedCache) Option {
	return func(i *Injector) { i.shared = c }
}

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(i *Injector) {
		if o != nil {
			i.observer = o
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(i *Injector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Injector 在 agent 发言前为消息注入检索上下文。
// 缓存命中时不会调用检索；检索失败时降级为仅附带领域提示的消息。
type Injector struct {
	config   Config
	builder  memory.ContextBuilder
	local    *cache.LRU[string]
	shared   SharedCache
	group    singleflight.Group
	observer Observer
	tracer   trace.Tracer
	logger   *zap.Logger

	mu          sync.Mutex
	turnHistory map[string][]TurnHistoryEntry
	scratchpad  map[string][]string

	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
	bypassed atomic.Uint64
}

// NewInjector 创建注入器，builder 为 nil 时每次检索都按失败降级
func NewInjector(config Config, builder memory.ContextBuilder, opts ...Option) *Injector {
	def := DefaultConfig()
	if config.CacheCapacity <= 0 {
		config.CacheCapacity = def.CacheCapacity
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = def.HistoryLimit
	}
	if config.ScratchpadWindow <= 0 {
		config.ScratchpadWindow = def.ScratchpadWindow
	}

	i := &Injector{
		config:      config,
		builder:     builder,
		local:       cache.NewLRU[string](config.CacheCapacity, config.CacheTTL),
		observer:    nopObserver{},
		tracer:      otel.Tracer(instrumentationName),
		logger:      zap.NewNop(),
		turnHistory: make(map[string][]TurnHistoryEntry),
		scratchpad:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With(zap.String("component", "turn_context_injector"))
	return i
}

// Enabled 是否开启每轮注入
func (i *Injector) Enabled() bool { return i.config.Enabled }

// InjectContextForTurn 返回注入上下文后的消息，永不返回错误。
func (i *Injector) InjectContextForTurn(ctx context.Context, req TurnRequest) string {
	start := time.Now()
	if !i.config.Enabled {
		i.bypassed.Add(1)
		i.observer.ObserveInjection(OutcomeDisabled, time.Since(start))
		return req.CurrentMessage
	}

	ctx, span := i.tracer.Start(ctx, "turncontext.inject", trace.WithAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.String("agent.name", req.AgentName),
		attribute.Int("turn.number", req.TurnNumber),
	))
	defer span.End()

	outcome := OutcomeMiss
	defer func() {
		span.SetAttributes(attribute.String("turncontext.outcome", outcome))
		i.observer.ObserveInjection(outcome, time.Since(start))
	}()

	key := CacheKey(req.ConversationID, req.AgentName, req.TurnNumber, req.CurrentMessage)
	if enhanced, ok := i.lookup(ctx, key); ok {
		outcome = OutcomeHit
		i.hits.Add(1)
		i.observer.RecordCacheHit(cacheType)
		return enhanced
	}
	i.misses.Add(1)
	i.observer.RecordCacheMiss(cacheType)

	enhanced, err := i.buildShared(ctx, key, req)
	if err != nil {
		outcome = OutcomeDegraded
		i.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.Warn("context retrieval failed, using degraded message",
			zap.String("conversation_id", req.ConversationID),
			zap.String("agent", req.AgentName),
			zap.Int("turn", req.TurnNumber),
			zap.Error(err),
		)
		return compose(req.CurrentMessage, req.AgentName, nil, nil)
	}
	return enhanced
}

// buildShared 同一 key 的并发未命中只触发一次检索。
// 检索不随发起方取消，只受 RetrievalTimeout 约束；每个调用方按自己的 ctx 等待结果。
func (i *Injector) buildShared(ctx context.Context, key string, req TurnRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	detached := context.WithoutCancel(ctx)
	ch := i.group.DoChan(key, func() (any, error) {
		// 前一次检索可能刚好写入缓存
		if enhanced, ok := i.local.Get(key); ok {
			return enhanced, nil
		}
		return i.build(detached, key, req)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (i *Injector) lookup(ctx context.Context, key string) (string, bool) {
	if v, ok := i.local.Get(key); ok {
		return v, true
	}
	if i.shared == nil {
		return "", false
	}
	v, err := i.shared.Get(ctx, key)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			i.logger.Debug("shared cache get failed", zap.Error(err))
		}
		return "", false
	}
	i.local.Set(key, v)
	return v, true
}

func (i *Injector) build(ctx context.Context, key string, req TurnRequest) (string, error) {
	if i.builder == nil {
		return "", errors.New("no memory context builder configured")
	}

	rctx := ctx
	if i.config.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, i.config.RetrievalTimeout)
		defer cancel()
	}

	mc, err := i.retrieve(rctx, memory.Request{
		ConversationID:      req.ConversationID,
		UserID:              req.UserID,
		AgentName:           req.AgentName,
		Message:             req.CurrentMessage,
		History:             req.History,
		MaxFacts:            i.config.MaxFacts,
		SimilarityThreshold: i.config.SimilarityThreshold,
	})
	if err != nil {
		return "", err
	}
	if mc.Empty() {
		return "", errEmptyContext
	}

	facts := mc.Facts
	if len(facts) == 0 && len(mc.History) == 0 && len(mc.Insights) == 0 {
		facts = contentLines(mc.Content)
	}
	if i.config.MaxFacts > 0 && len(facts) > i.config.MaxFacts {
		facts = facts[:i.config.MaxFacts]
	}

	notes := i.appendScratchpad(req)
	block := &contextBlock{facts: facts, history: mc.History, insights: mc.Insights}
	enhanced := compose(req.CurrentMessage, req.AgentName, block, notes)

	i.local.Set(key, enhanced)
	if i.shared != nil {
		if err := i.shared.Set(ctx, key, enhanced, i.config.CacheTTL); err != nil {
			i.logger.Debug("shared cache set failed", zap.Error(err))
		}
	}
	i.appendHistory(req.ConversationID, TurnHistoryEntry{
		Turn:            req.TurnNumber,
		Agent:           req.AgentName,
		ContextFacts:    append([]string(nil), facts...),
		ContextHistory:  append([]string(nil), mc.History...),
		ContextInsights: append([]string(nil), mc.Insights...),
		InjectedAt:      time.Now(),
	})

	i.logger.Debug("context injected",
		zap.String("conversation_id", req.ConversationID),
		zap.String("agent", req.AgentName),
		zap.Int("turn", req.TurnNumber),
		zap.Int("facts", len(facts)),
	)
	return enhanced, nil
}

// retrieve 在独立 goroutine 中调用检索，超时即返回，panic 转为错误。
// 不理会 ctx 的检索器也不会拖住本轮。
func (i *Injector) retrieve(ctx context.Context, req memory.Request) (*memory.Context, error) {
	type built struct {
		mc  *memory.Context
		err error
	}
	done := make(chan built, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- built{err: fmt.Errorf("memory context builder panicked: %v", r)}
			}
		}()
		mc, err := i.builder.BuildMemoryContext(ctx, req)
		done <- built{mc: mc, err: err}
	}()

	select {
	case b := <-done:
		if b.err == nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return b.mc, b.err
	case <-ctx.Done():
		return nil, fmt.Errorf("memory context retrieval: %w", ctx.Err())
	}
}

func (i *Injector) appendScratchpad(req TurnRequest) []string {
	note := fmt.Sprintf("Turn %d: %s addressing %q", req.TurnNumber, displayAgent(req.AgentName), truncate(req.CurrentMessage, 80))

	i.mu.Lock()
	defer i.mu.Unlock()

	pad := append(i.scratchpad[req.ConversationID], note)
	if over := len(pad) - i.config.HistoryLimit; over > 0 {
		pad = append([]string(nil), pad[over:]...)
	}
	i.scratchpad[req.ConversationID] = pad

	from := len(pad) - i.config.ScratchpadWindow
	if from < 0 {
		from = 0
	}
	return append([]string(nil), pad[from:]...)
}

func (i *Injector) appendHistory(conversationID string, entry TurnHistoryEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	h := append(i.turnHistory[conversationID], entry)
	if over := len(h) - i.config.HistoryLimit; over > 0 {
		h = append([]TurnHistoryEntry(nil), h[over:]...)
	}
	i.turnHistory[conversationID] = h
}

// TurnHistory 返回会话的注入记录副本
func (i *Injector) TurnHistory(conversationID string) []TurnHistoryEntry {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]TurnHistoryEntry(nil), i.turnHistory[conversationID]...)
}

// Scratchpad 返回会话的 scratchpad 副本
func (i *Injector) Scratchpad(conversationID string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.scratchpad[conversationID]...)
}

// ClearConversation 释放某个会话的全部注入状态（本地缓存、历史、scratchpad）。
// 本地缓存中的 key 同时从共享缓存删除，其余共享条目按 TTL 过期。
func (i *Injector) ClearConversation(ctx context.Context, conversationID string) {
	i.mu.Lock()
	delete(i.turnHistory, conversationID)
	delete(i.scratchpad, conversationID)
	i.mu.Unlock()

	prefix := keyPrefix(conversationID)
	var keys []string
	i.local.DeleteFunc(func(key string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})
	if i.shared == nil || len(keys) == 0 {
		return
	}

	timeout := i.config.RetrievalTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RetrievalTimeout
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := i.shared.Delete(dctx, keys...); err != nil {
		i.logger.Debug("shared cache delete failed",
			zap.String("conversation_id", conversationID),
			zap.Int("keys", len(keys)),
			zap.Error(err),
		)
	}
}

// Reset 清空所有状态与统计，用于测试隔离
func (i *Injector) Reset() {
	i.mu.Lock()
	i.turnHistory = make(map[string][]TurnHistoryEntry)
	i.scratchpad = make(map[string][]string)
	i.mu.Unlock()

	i.local.Clear()
	i.hits.Store(0)
	i.misses.Store(0)
	i.failures.Store(0)
	i.bypassed.Store(0)
}

// Stats 返回注入统计
func (i *Injector) Stats() Stats {
	s := Stats{
		Hits:      i.hits.Load(),
		Misses:    i.misses.Load(),
		Failures:  i.failures.Load(),
		Bypassed:  i.bypassed.Load(),
		CacheSize: i.local.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// CacheKey 由 (会话, agent, 轮次, 消息) 生成缓存键
func CacheKey(conversationID, agentName string, turn int, message string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%s", conversationID, agentName, turn, message)
	return keyPrefix(conversationID) + hex.EncodeToString(h.Sum(nil)[:16])
}

func keyPrefix(conversationID string) string {
	return "turnctx:" + conversationID + ":"
}

type nopObserver struct{}

func (nopObserver) ObserveInjection(string, time.Duration) {}
func (nopObserver) RecordCacheHit(string)                  {}
func (nopObserver) RecordCacheMiss(string)                 {}
