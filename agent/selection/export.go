package selection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	exportConversations = 20
	exportDecisions     = 5
)

// MetricsExport ExportMetrics 写出的文件结构
type MetricsExport struct {
	ExportedAt    time.Time              `json:"exported_at"`
	Dashboard     KPIDashboard           `json:"dashboard"`
	Conversations []*ConversationMetrics `json:"conversations"`
}

// Snapshot 构造导出内容：KPI 汇总加最近 20 个会话，每个会话最多前 5 条决策
func (r *Recorder) Snapshot() MetricsExport {
	dash := r.GetKPIDashboard()

	r.mu.RLock()
	from := len(r.order) - exportConversations
	if from < 0 {
		from = 0
	}
	convs := make([]*ConversationMetrics, 0, len(r.order)-from)
	for _, id := range r.order[from:] {
		convs = append(convs, cloneMetrics(r.conversations[id], exportDecisions))
	}
	r.mu.RUnlock()

	return MetricsExport{
		ExportedAt:    time.Now(),
		Dashboard:     dash,
		Conversations: convs,
	}
}

// ExportMetrics 把 Snapshot 以 JSON 写入 outputPath，先写临时文件再原子替换
func (r *Recorder) ExportMetrics(outputPath string) error {
	snap := r.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".metrics-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return fmt.Errorf("rename metrics file: %w", err)
	}

	r.logger.Info("metrics exported", zap.String("path", outputPath), zap.Int("conversations", len(snap.Conversations)))
	return nil
}
