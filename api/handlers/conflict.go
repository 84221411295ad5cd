package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/convergio/agent/conflict"
	"github.com/BaSui01/convergio/api"
)

// ConflictHandler 冲突检测处理器
type ConflictHandler struct {
	detector      *conflict.Detector
	defaultWindow int
	logger        *zap.Logger
}

// NewConflictHandler 创建冲突检测处理器
func NewConflictHandler(detector *conflict.Detector, defaultWindow int, logger *zap.Logger) *ConflictHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if detector == nil {
		detector = conflict.NewDetector(nil)
	}
	if defaultWindow <= 0 {
		defaultWindow = 6
	}
	return &ConflictHandler{
		detector:      detector,
		defaultWindow: defaultWindow,
		logger:        logger.With(zap.String("component", "conflict_handler")),
	}
}

// HandleDetect 处理 POST /api/v1/conflicts
func (h *ConflictHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	var req api.DetectConflictsRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	window := h.defaultWindow
	if req.Window != nil {
		window = *req.Window
	}
	if window < 0 {
		WriteError(w, ErrInvalidRequest, "window must not be negative", h.logger)
		return
	}

	found := h.detector.DetectFromMaps(req.History, window)
	if found == nil {
		found = []conflict.Conflict{}
	}
	WriteSuccess(w, api.DetectConflictsResponse{Conflicts: found, Window: window})
}
