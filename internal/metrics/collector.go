// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// LLM 指标（按发言 agent 统计）
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec
	llmCost            *prometheus.CounterVec

	// 发言人选择指标
	selectionsTotal   *prometheus.CounterVec
	selectionDuration *prometheus.HistogramVec

	// 会话质量指标
	conversationsEvaluated *prometheus.CounterVec
	conversationQuality    *prometheus.HistogramVec
	turnReduction          *prometheus.HistogramVec
	costSaved              *prometheus.CounterVec

	// 上下文注入指标
	injectionsTotal   *prometheus.CounterVec
	injectionDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 冲突指标
	conflictsDetected *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器（注册到默认 registry）
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of agent LLM completions",
		},
		[]string{"agent", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Agent LLM completion duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"agent"},
	)

	c.llmCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_total",
			Help:      "Total LLM cost in USD",
		},
		[]string{"agent"},
	)

	// 发言人选择指标
	c.selectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_selections_total",
			Help:      "Total number of speaker selection decisions",
		},
		[]string{"agent", "mission_phase"},
	)

	c.selectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speaker_selection_duration_seconds",
			Help:      "Speaker selection decision time in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"mission_phase"},
	)

	// 会话质量指标
	c.conversationsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_evaluated_total",
			Help:      "Total number of conversations evaluated for quality",
		},
		[]string{"conversation_type"},
	)

	c.conversationQuality = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_quality_score",
			Help:      "Composite conversation quality score (0-1)",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"conversation_type"},
	)

	c.turnReduction = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_turn_reduction_percent",
			Help:      "Turn reduction versus baseline in percent",
			Buckets:   []float64{-100, -50, -25, 0, 10, 25, 50, 75, 100},
		},
		[]string{"conversation_type"},
	)

	c.costSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_cost_saved_total",
			Help:      "Estimated cost saved versus baseline in USD (positive savings only)",
		},
		[]string{"conversation_type"},
	)

	// 上下文注入指标
	c.injectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_injections_total",
			Help:      "Total number of per-turn context injections by outcome",
		},
		[]string{"outcome"},
	)

	c.injectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_injection_duration_seconds",
			Help:      "Per-turn context injection latency in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"outcome"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 冲突指标
	c.conflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_detected_total",
			Help:      "Total number of distinct conflicts detected between agent turns",
		},
		[]string{"type"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 Agent 发言指标记录
// =============================================================================

// ObserveTurn 记录一次 agent 发言的 LLM 调用
func (c *Collector) ObserveTurn(agent, status string, duration time.Duration, tokens int, cost float64) {
	c.llmRequestsTotal.WithLabelValues(agent, status).Inc()
	c.llmRequestDuration.WithLabelValues(agent).Observe(duration.Seconds())
	if tokens > 0 {
		c.llmTokensUsed.WithLabelValues(agent).Add(float64(tokens))
	}
	if cost > 0 {
		c.llmCost.WithLabelValues(agent).Add(cost)
	}
}

// ObserveConflicts 记录新检测到的冲突数量
func (c *Collector) ObserveConflicts(conflictType string, n int) {
	if n <= 0 {
		return
	}
	c.conflictsDetected.WithLabelValues(conflictType).Add(float64(n))
}

// =============================================================================
// 🧭 发言人选择与会话质量
// =============================================================================

// ObserveSelection 记录一次发言人选择
func (c *Collector) ObserveSelection(agent, missionPhase string, decisionTimeMs float64) {
	c.selectionsTotal.WithLabelValues(agent, missionPhase).Inc()
	c.selectionDuration.WithLabelValues(missionPhase).Observe(decisionTimeMs / 1000)
}

// ObserveEvaluation 记录一次会话质量评估
func (c *Collector) ObserveEvaluation(conversationType string, quality, turnReduction, costReduction float64) {
	c.conversationsEvaluated.WithLabelValues(conversationType).Inc()
	c.conversationQuality.WithLabelValues(conversationType).Observe(quality)
	c.turnReduction.WithLabelValues(conversationType).Observe(turnReduction)
	// Counter 只能递增，负的节省不计入
	if costReduction > 0 {
		c.costSaved.WithLabelValues(conversationType).Add(costReduction)
	}
}

// =============================================================================
// 💾 上下文注入与缓存指标记录
// =============================================================================

// ObserveInjection 记录一次上下文注入
func (c *Collector) ObserveInjection(outcome string, duration time.Duration) {
	c.injectionsTotal.WithLabelValues(outcome).Inc()
	c.injectionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
