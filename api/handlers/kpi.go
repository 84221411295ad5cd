package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/convergio/api"
)

// KPIHandler KPI 看板与指标导出
type KPIHandler struct {
	metrics   SelectionMetrics
	exportDir string
	now       func() time.Time
	logger    *zap.Logger
}

// NewKPIHandler 创建 KPI 处理器，导出文件写入 exportDir
func NewKPIHandler(metrics SelectionMetrics, exportDir string, logger *zap.Logger) *KPIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exportDir == "" {
		exportDir = "."
	}
	return &KPIHandler{
		metrics:   metrics,
		exportDir: exportDir,
		now:       time.Now,
		logger:    logger.With(zap.String("component", "kpi_handler")),
	}
}

// HandleDashboard 处理 GET /api/v1/kpi
func (h *KPIHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.metrics.GetKPIDashboard())
}

// HandleExport 处理 POST /api/v1/kpi/export
func (h *KPIHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	path := filepath.Join(h.exportDir, fmt.Sprintf("selection_metrics_%s.json", now.UTC().Format("20060102_150405.000")))

	if err := h.metrics.ExportMetrics(path); err != nil {
		WriteError(w, ErrInternalError, "export failed: "+err.Error(), h.logger)
		return
	}
	WriteSuccess(w, api.ExportResponse{Path: path, ExportedAt: now})
}
