package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/convergio/agent/conversation"
	"github.com/BaSui01/convergio/agent/selection"
	"github.com/BaSui01/convergio/api"
)

// =============================================================================
// 💬 群聊 Handler
// =============================================================================

// ConversationRunner 运行群聊并保存结果，conversation.GroupChatManager 满足该接口
type ConversationRunner interface {
	Start(ctx context.Context, req conversation.RunRequest) (*conversation.Result, error)
	GetResult(id string) (*conversation.Result, bool)
}

// SelectionMetrics 选择指标读写，selection.Recorder 满足该接口
type SelectionMetrics interface {
	Conversation(conversationID string) (*selection.ConversationMetrics, bool)
	EvaluateConversationQuality(ctx context.Context, conversationID string, resolutionAchieved bool, userSatisfaction *float64, conversationType string) (*selection.QualitySummary, error)
	GetKPIDashboard() selection.KPIDashboard
	ExportMetrics(outputPath string) error
}

// ConversationHandler 群聊处理器
type ConversationHandler struct {
	runner  ConversationRunner
	metrics SelectionMetrics
	agents  []api.AgentInfo
	logger  *zap.Logger
}

// NewConversationHandler 创建群聊处理器
func NewConversationHandler(runner ConversationRunner, metrics SelectionMetrics, agents []api.AgentInfo, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		runner:  runner,
		metrics: metrics,
		agents:  agents,
		logger:  logger.With(zap.String("component", "conversation_handler")),
	}
}

// HandleStart 处理 POST /api/v1/conversations
func (h *ConversationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartConversationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, ErrInvalidRequest, "message is required", h.logger)
		return
	}
	if req.MaxTurns < 0 {
		WriteError(w, ErrInvalidRequest, "max_turns must not be negative", h.logger)
		return
	}

	result, err := h.runner.Start(r.Context(), conversation.RunRequest{
		ConversationID:   req.ConversationID,
		UserID:           req.UserID,
		Message:          req.Message,
		ConversationType: req.ConversationType,
		MaxTurns:         req.MaxTurns,
	})
	switch {
	case err == nil:
		WriteSuccess(w, result)
	case errors.Is(err, context.DeadlineExceeded) && result != nil:
		// 群聊超时，返回已完成的部分
		h.logger.Warn("conversation timed out", zap.String("conversation_id", result.ConversationID))
		WriteSuccess(w, result)
	case errors.Is(err, conversation.ErrEmptyMessage):
		WriteError(w, ErrInvalidRequest, err.Error(), h.logger)
	case errors.Is(err, conversation.ErrConversationExists):
		WriteError(w, ErrConflict, err.Error(), h.logger)
	case errors.Is(err, conversation.ErrNoAgents):
		WriteError(w, ErrServiceUnavailable, err.Error(), h.logger)
	case errors.Is(err, context.Canceled):
		h.logger.Info("conversation cancelled by client")
		WriteError(w, ErrTimeout, "request cancelled", h.logger)
	default:
		WriteError(w, ErrInternalError, err.Error(), h.logger)
	}
}

// HandleGet 处理 GET /api/v1/conversations/{id}
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, ok := h.runner.GetResult(id)
	if !ok {
		WriteError(w, ErrNotFound, selection.ErrConversationNotFound.Error(), h.logger)
		return
	}
	WriteSuccess(w, result)
}

// HandleMetrics 处理 GET /api/v1/conversations/{id}/metrics
func (h *ConversationHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, ok := h.metrics.Conversation(id)
	if !ok {
		WriteError(w, ErrNotFound, selection.ErrConversationNotFound.Error(), h.logger)
		return
	}
	WriteSuccess(w, m)
}

// HandleEvaluate 处理 POST /api/v1/conversations/{id}/evaluate
func (h *ConversationHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req api.EvaluateConversationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if s := req.UserSatisfaction; s != nil && (*s < 0 || *s > 1) {
		WriteError(w, ErrInvalidRequest, "user_satisfaction must be between 0 and 1", h.logger)
		return
	}

	summary, err := h.metrics.EvaluateConversationQuality(r.Context(), id, req.ResolutionAchieved, req.UserSatisfaction, req.ConversationType)
	switch {
	case err == nil:
		WriteSuccess(w, summary.Map())
	case errors.Is(err, selection.ErrConversationNotFound):
		WriteError(w, ErrNotFound, err.Error(), h.logger)
	case errors.Is(err, selection.ErrAlreadyEvaluated):
		WriteError(w, ErrConflict, err.Error(), h.logger)
	default:
		WriteError(w, ErrInternalError, err.Error(), h.logger)
	}
}

// HandleAgents 处理 GET /api/v1/agents
func (h *ConversationHandler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.agents)
}
