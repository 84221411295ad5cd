package conversation

import (
	"strings"
)

// 任务阶段
const (
	PhaseDiscovery = "discovery"
	PhaseAnalysis  = "analysis"
	PhaseSynthesis = "synthesis"
)

// 消息意图
const (
	IntentQuestion        = "question"
	IntentDecisionRequest = "decision_request"
	IntentAnalysisRequest = "analysis_request"
	IntentStatement       = "statement"
)

// MissionPhase 按轮次在总轮数中的位置划分阶段：前三分之一 discovery，后三分之一 synthesis
func MissionPhase(turn, maxTurns int) string {
	if maxTurns <= 0 || turn <= 0 {
		return PhaseAnalysis
	}
	pos := float64(turn-1) / float64(maxTurns)
	switch {
	case pos < 1.0/3:
		return PhaseDiscovery
	case pos >= 2.0/3:
		return PhaseSynthesis
	default:
		return PhaseAnalysis
	}
}

var (
	decisionMarkers = []string{"should we", "should i", "decide", "decision", "approve", "recommend", "which option", "go or no-go", "choose"}
	analysisMarkers = []string{"analyze", "analyse", "analysis", "assess", "evaluate", "compare", "review", "breakdown", "forecast"}
	questionStarts  = []string{"what", "how", "why", "when", "who", "where", "which", "can", "could", "is", "are", "do", "does", "will", "would"}
)

// ClassifyIntent 粗分类消息意图
func ClassifyIntent(message string) string {
	m := strings.ToLower(strings.TrimSpace(message))
	if m == "" {
		return IntentStatement
	}
	for _, k := range decisionMarkers {
		if strings.Contains(m, k) {
			return IntentDecisionRequest
		}
	}
	for _, k := range analysisMarkers {
		if strings.Contains(m, k) {
			return IntentAnalysisRequest
		}
	}
	if strings.HasSuffix(m, "?") {
		return IntentQuestion
	}
	first := strings.Fields(m)[0]
	for _, q := range questionStarts {
		if first == q {
			return IntentQuestion
		}
	}
	return IntentStatement
}
