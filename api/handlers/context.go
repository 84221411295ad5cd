package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/convergio/agent/turncontext"
	"github.com/BaSui01/convergio/api"
)

// FactRecorder 记录用户事实，memory.RedisContextBuilder 满足该接口
type FactRecorder interface {
	Remember(ctx context.Context, userID, fact string) error
}

// InjectionStats 注入统计来源，turncontext.Injector 满足该接口
type InjectionStats interface {
	Stats() turncontext.Stats
	Enabled() bool
}

// ContextHandler 记忆与上下文注入处理器
type ContextHandler struct {
	facts    FactRecorder
	injector InjectionStats
	logger   *zap.Logger
}

// NewContextHandler 创建处理器
func NewContextHandler(facts FactRecorder, injector InjectionStats, logger *zap.Logger) *ContextHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextHandler{
		facts:    facts,
		injector: injector,
		logger:   logger.With(zap.String("component", "context_handler")),
	}
}

// HandleRemember 处理 POST /api/v1/facts
func (h *ContextHandler) HandleRemember(w http.ResponseWriter, r *http.Request) {
	var req api.RememberFactRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Fact) == "" {
		WriteError(w, ErrInvalidRequest, "user_id and fact are required", h.logger)
		return
	}
	if err := h.facts.Remember(r.Context(), req.UserID, req.Fact); err != nil {
		WriteError(w, ErrServiceUnavailable, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"user_id": req.UserID})
}

// HandleStats 处理 GET /api/v1/context/stats
func (h *ContextHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]any{
		"enabled": h.injector.Enabled(),
		"stats":   h.injector.Stats(),
	})
}
