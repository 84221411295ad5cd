package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/convergio/agent/conflict"
	"github.com/BaSui01/convergio/agent/conversation"
	"github.com/BaSui01/convergio/agent/memory"
	"github.com/BaSui01/convergio/agent/selection"
	"github.com/BaSui01/convergio/agent/turncontext"
	"github.com/BaSui01/convergio/api"
	"github.com/BaSui01/convergio/api/handlers"
	"github.com/BaSui01/convergio/config"
	"github.com/BaSui01/convergio/internal/cache"
	"github.com/BaSui01/convergio/internal/metrics"
	"github.com/BaSui01/convergio/internal/server"
	"github.com/BaSui01/convergio/internal/telemetry"
	"github.com/BaSui01/convergio/llm"
	"github.com/BaSui01/convergio/llm/retry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装 Convergio 的全部组件并对外提供 HTTP API
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	// 基础设施（均可为 nil）
	cache     *cache.Manager
	db        *gorm.DB
	collector *metrics.Collector

	// 领域组件
	facts    *memory.RedisContextBuilder
	injector *turncontext.Injector
	recorder *selection.Recorder
	detector *conflict.Detector
	chats    *conversation.GroupChatManager

	httpManager *server.Manager
}

// ServerOption 构造选项，测试中用来替换外部依赖
type ServerOption func(*serverDeps)

type serverDeps struct {
	completer llm.Completer
	cache     *cache.Manager
	db        *gorm.DB
}

// WithCompleter 使用给定的 LLM 客户端
func WithCompleter(c llm.Completer) ServerOption {
	return func(d *serverDeps) { d.completer = c }
}

// WithCache 使用已建立的 Redis 缓存
func WithCache(c *cache.Manager) ServerOption {
	return func(d *serverDeps) { d.cache = c }
}

// WithDatabase 使用已建立的数据库连接
func WithDatabase(db *gorm.DB) ServerOption {
	return func(d *serverDeps) { d.db = db }
}

// NewServer 按配置组装组件。Redis 或数据库不可用时降级运行。
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, opts ...ServerOption) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Agents) == 0 {
		return nil, errors.New("no agents configured")
	}

	deps := &serverDeps{}
	for _, opt := range opts {
		opt(deps)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,
		cache:  deps.cache,
		db:     deps.db,
	}

	if cfg.Metrics.Enabled {
		s.collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}
	s.initCache()
	s.initDatabase()

	s.facts = s.newFactBuilder()
	s.injector = s.newInjector()
	s.recorder = s.newRecorder()
	s.detector = conflict.NewDetector(termPairs(cfg.Conflict.TermPairs))

	completer := deps.completer
	if completer == nil {
		completer = newCompleter(cfg.LLM, logger)
	}
	s.chats = s.newGroupChatManager(completer)

	logger.Info("Components initialized",
		zap.Bool("redis", s.cache != nil),
		zap.Bool("database", s.db != nil),
		zap.Bool("metrics", s.collector != nil),
		zap.Bool("in_loop_rag", s.injector.Enabled()),
		zap.String("selection_strategy", cfg.Selection.Strategy),
	)
	return s, nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initCache() {
	if s.cache != nil || !s.cfg.Redis.Enabled {
		return
	}
	rc := s.cfg.Redis
	cc := cache.DefaultConfig()
	cc.Addr = rc.Addr
	cc.Password = rc.Password
	cc.DB = rc.DB
	cc.PoolSize = rc.PoolSize
	cc.MinIdleConns = rc.MinIdleConns
	cc.KeyPrefix = rc.KeyPrefix
	cc.DefaultTTL = rc.DefaultTTL

	m, err := cache.NewManager(cc, s.logger)
	if err != nil {
		s.logger.Warn("Redis not available, using in-process context cache and fact store", zap.Error(err))
		return
	}
	s.cache = m
}

func (s *Server) initDatabase() {
	if s.db != nil || !s.cfg.Database.Enabled {
		return
	}
	db, err := openDatabase(s.cfg.Database, s.logger)
	if err != nil {
		s.logger.Warn("Database not available, selection decisions kept in memory only", zap.Error(err))
		return
	}
	s.db = db
}

func (s *Server) newFactBuilder() *memory.RedisContextBuilder {
	rag := s.cfg.RAG
	bc := memory.DefaultBuilderConfig()
	bc.MaxFactsPerUser = rag.MaxFactsPerUser
	bc.FactTTL = rag.FactTTL

	var store memory.FactStore
	if s.cache != nil {
		store = s.cache
	} else {
		store = memory.NewInMemoryFactStore(memory.InMemoryFactStoreConfig{MaxKeys: 10000}, s.logger)
	}
	return memory.NewRedisContextBuilder(store, bc, s.logger)
}

func (s *Server) newInjector() *turncontext.Injector {
	rag := s.cfg.RAG
	ic := turncontext.Config{
		Enabled:             rag.InLoopEnabled,
		MaxFacts:            rag.MaxFacts,
		SimilarityThreshold: rag.SimilarityThreshold,
		CacheCapacity:       rag.CacheCapacity,
		CacheTTL:            rag.CacheTTL,
		HistoryLimit:        rag.HistoryLimit,
		RetrievalTimeout:    rag.RetrievalTimeout,
		ScratchpadWindow:    rag.ScratchpadWindow,
	}

	opts := []turncontext.Option{turncontext.WithLogger(s.logger)}
	if s.cache != nil {
		opts = append(opts, turncontext.WithSharedCache(s.cache))
	}
	if s.collector != nil {
		opts = append(opts, turncontext.WithObserver(s.collector))
	}
	return turncontext.NewInjector(ic, s.facts, opts...)
}

func (s *Server) newRecorder() *selection.Recorder {
	sc := s.cfg.Selection
	rc := selection.Config{
		CostPerTurn:      sc.CostPerTurn,
		BaselineTurns:    sc.BaselineTurns,
		DefaultBaseline:  sc.DefaultBaseline,
		MaxConversations: sc.MaxConversations,
		StoreTimeout:     sc.StoreTimeout,
	}

	opts := []selection.Option{selection.WithLogger(s.logger)}
	if s.collector != nil {
		opts = append(opts, selection.WithObserver(s.collector))
	}
	if s.db != nil {
		store := selection.NewGormDecisionStore(s.db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			s.logger.Error("Selection store migration failed, decisions kept in memory only", zap.Error(err))
		} else {
			opts = append(opts, selection.WithStore(store))
		}
	}
	return selection.NewRecorder(rc, opts...)
}

func (s *Server) newGroupChatManager(completer llm.Completer) *conversation.GroupChatManager {
	agents := make([]conversation.ConversationAgent, 0, len(s.cfg.Agents))
	for _, a := range s.cfg.Agents {
		agents = append(agents, conversation.NewLLMAgent(conversation.AgentSpec{
			Name:         a.Name,
			Description:  a.Description,
			Expertise:    a.Expertise,
			SystemPrompt: a.SystemPrompt,
			MaxTokens:    a.MaxTokens,
			Temperature:  float32(a.Temperature),
		}, completer))
	}

	cc := s.cfg.Conversation
	opts := []conversation.Option{
		conversation.WithSelector(newSelector(s.cfg.Selection.Strategy)),
		conversation.WithInjector(s.injector),
		conversation.WithRecorder(s.recorder),
		conversation.WithDetector(s.detector),
		conversation.WithLogger(s.logger),
	}
	if s.collector != nil {
		opts = append(opts, conversation.WithObserver(s.collector))
	}

	chat := conversation.NewGroupChat(agents, conversation.Config{
		MaxTurns:               cc.MaxTurns,
		Timeout:                cc.Timeout,
		TerminationWords:       cc.TerminationWords,
		ConflictWindow:         s.cfg.Conflict.Window,
		MaxConsecutiveFailures: cc.MaxConsecutiveFailures,
		ConversationType:       cc.DefaultType,
		ReleaseContext:         true,
	}, opts...)
	return conversation.NewGroupChatManager(chat, cc.MaxResults, s.logger)
}

func newSelector(strategy string) conversation.SpeakerSelector {
	if strategy == "round_robin" {
		return conversation.RoundRobinSelector{}
	}
	return conversation.NewExpertiseSelector()
}

func newCompleter(lc config.LLMConfig, logger *zap.Logger) llm.Completer {
	client := llm.NewOpenAICompatClient(llm.OpenAICompatConfig{
		BaseURL:     lc.BaseURL,
		APIKey:      lc.APIKey,
		Model:       lc.Model,
		Timeout:     lc.Timeout,
		MaxTokens:   lc.MaxTokens,
		Temperature: float32(lc.Temperature),
		Pricing: llm.Pricing{
			InputPerMillion:      lc.PriceInput,
			CompletionPerMillion: lc.PriceCompletion,
		},
	}, logger)
	if lc.MaxRetries <= 0 {
		return client
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = lc.MaxRetries
	policy.InitialDelay = lc.RetryBackoff
	return llm.NewRetryingCompleter(client, retry.New(policy, logger))
}

func termPairs(in []config.TermPairConfig) []conflict.TermPair {
	if len(in) == 0 {
		return nil
	}
	out := make([]conflict.TermPair, len(in))
	for i, p := range in {
		out[i] = conflict.TermPair{A: p.A, B: p.B}
	}
	return out
}

// =============================================================================
// 🌐 HTTP 路由
// =============================================================================

// Handler 构建带中间件链的路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(s.logger)
	if s.cache != nil {
		health.RegisterCheck(handlers.NewPingCheck("redis", s.cache.Ping))
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			health.RegisterCheck(handlers.NewPingCheck("database", sqlDB.PingContext))
		}
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))
	if s.collector != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	agents := make([]api.AgentInfo, len(s.cfg.Agents))
	for i, a := range s.cfg.Agents {
		agents[i] = api.AgentInfo{Name: a.Name, Expertise: a.Expertise}
	}
	conv := handlers.NewConversationHandler(s.chats, s.recorder, agents, s.logger)
	mux.HandleFunc("GET /api/v1/agents", conv.HandleAgents)
	mux.HandleFunc("POST /api/v1/conversations", conv.HandleStart)
	mux.HandleFunc("GET /api/v1/conversations/{id}", conv.HandleGet)
	mux.HandleFunc("GET /api/v1/conversations/{id}/metrics", conv.HandleMetrics)
	mux.HandleFunc("POST /api/v1/conversations/{id}/evaluate", conv.HandleEvaluate)

	kpi := handlers.NewKPIHandler(s.recorder, s.cfg.Server.ExportDir, s.logger)
	mux.HandleFunc("GET /api/v1/kpi", kpi.HandleDashboard)
	mux.HandleFunc("POST /api/v1/kpi/export", kpi.HandleExport)

	conflicts := handlers.NewConflictHandler(s.detector, s.cfg.Conflict.Window, s.logger)
	mux.HandleFunc("POST /api/v1/conflicts", conflicts.HandleDetect)

	ctxHandler := handlers.NewContextHandler(s.facts, s.injector, s.logger)
	mux.HandleFunc("POST /api/v1/facts", ctxHandler.HandleRemember)
	mux.HandleFunc("GET /api/v1/context/stats", ctxHandler.HandleStats)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
	}
	if s.otel.Enabled() {
		middlewares = append(middlewares, OTelTracing())
	}
	if s.collector != nil {
		middlewares = append(middlewares, MetricsMiddleware(s.collector))
	}
	return Chain(mux, middlewares...)
}

// =============================================================================
// 🚀 启动与关闭
// =============================================================================

// Start 启动 HTTP 服务（非阻塞）
func (s *Server) Start() error {
	s.httpManager = server.NewManager(s.Handler(), server.ConfigFrom(s.cfg.Server), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// WaitForShutdown 等待关闭信号或 ctx 结束，然后释放全部资源
func (s *Server) WaitForShutdown(ctx context.Context) {
	if s.httpManager != nil {
		if err := s.httpManager.WaitForShutdown(ctx); err != nil {
			s.logger.Error("HTTP server exited with error", zap.Error(err))
		}
	}
	s.Shutdown()
}

// Shutdown 关闭 HTTP 服务并释放 Redis、数据库与遥测
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Redis close error", zap.Error(err))
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.logger.Error("Database close error", zap.Error(err))
			}
		}
	}
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
