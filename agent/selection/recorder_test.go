package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

func decision(conv string, turn int, agent string, ms float64) SelectionDecision {
	return SelectionDecision{
		ConversationID: conv,
		TurnNumber:     turn,
		SelectedAgent:  agent,
		DecisionTimeMs: ms,
		MissionPhase:   "analysis",
		MessageIntent:  "question",
		ScoringFactors: map[string]float64{"expertise": 0.6},
	}
}

func record(t *testing.T, r *Recorder, conv string, agents ...string) {
	t.Helper()
	for i, a := range agents {
		r.RecordSelection(context.Background(), decision(conv, i+1, a, float64(i+1)))
	}
}

func ptr(v float64) *float64 { return &v }

type fakeObserver struct {
	mu          sync.Mutex
	selections  []string
	evaluations []float64
}

func (o *fakeObserver) ObserveSelection(agent, _ string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selections = append(o.selections, agent)
}

func (o *fakeObserver) ObserveEvaluation(_ string, quality, _, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evaluations = append(o.evaluations, quality)
}

// =============================================================================
// 📝 RecordSelection
// =============================================================================

func TestRecorder_RecordSelection_Aggregates(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	ctx := context.Background()

	r.RecordSelection(ctx, decision("c1", 1, "x", 10))
	r.RecordSelection(ctx, decision("c1", 2, "y", 20))
	r.RecordSelection(ctx, decision("c1", 3, "x", 30))

	m, ok := r.Conversation("c1")
	require.True(t, ok)
	assert.Equal(t, 3, m.TotalTurns)
	assert.Equal(t, 2, m.UniqueSpeakers)
	assert.Equal(t, map[string]int{"x": 2, "y": 1}, m.SpeakerDistribution)
	assert.InDelta(t, 20.0, m.AvgSelectionTimeMs, 1e-9)
	assert.False(t, m.Evaluated)
	assert.Nil(t, m.EndTime)
	require.Len(t, m.Decisions, 3)
	assert.False(t, m.Decisions[0].Timestamp.IsZero())
	assert.Equal(t, m.Decisions[0].Timestamp, m.StartTime)
}

// Scenario C
func TestRecorder_AgentEffectivenessSelections(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	record(t, r, "c1", "x", "y", "x")

	dash := r.GetKPIDashboard()

	assert.Equal(t, 2, dash.AgentEffectiveness["x"].Selections)
	assert.Equal(t, 1, dash.AgentEffectiveness["y"].Selections)
	assert.InDelta(t, 2.0/3.0, dash.AgentEffectiveness["x"].SelectionRate, 1e-9)
	assert.Equal(t, 3, dash.TotalSelections)
	assert.Equal(t, 1, dash.TotalConversations)
}

func TestRecorder_RecordSelection_NotIdempotent(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	d := decision("c1", 1, "x", 5)
	r.RecordSelection(context.Background(), d)
	r.RecordSelection(context.Background(), d)

	m, _ := r.Conversation("c1")
	assert.Equal(t, 2, m.TotalTurns)
}

func TestRecorder_RecordSelection_CopiesInput(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	d := decision("c1", 1, "x", 5)
	d.PreviousSpeakers = []string{"user"}
	r.RecordSelection(context.Background(), d)

	d.ScoringFactors["expertise"] = 99
	d.PreviousSpeakers[0] = "mutated"

	m, _ := r.Conversation("c1")
	assert.Equal(t, 0.6, m.Decisions[0].ScoringFactors["expertise"])
	assert.Equal(t, "user", m.Decisions[0].PreviousSpeakers[0])
}

func TestRecorder_ObserverNotified(t *testing.T) {
	obs := &fakeObserver{}
	r := NewRecorder(DefaultConfig(), WithObserver(obs), WithLogger(zaptest.NewLogger(t)))
	record(t, r, "c1", "x", "y")

	_, err := r.EvaluateConversationQuality(context.Background(), "c1", true, nil, TypeAnalysis)
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, obs.selections)
	assert.Len(t, obs.evaluations, 1)
}

// =============================================================================
// 📊 EvaluateConversationQuality
// =============================================================================

// P6
func TestEvaluate_TurnReductionAnalysis(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	record(t, r, "c1", "a", "b", "c", "d")

	s, err := r.EvaluateConversationQuality(context.Background(), "c1", true, nil, TypeAnalysis)
	require.NoError(t, err)

	assert.Equal(t, 8, s.BaselineTurns)
	assert.Equal(t, 50.0, s.TurnReductionPercentage)
	assert.InDelta(t, 0.4, s.CostReduction, 1e-9)
}

// Scenario D
func TestEvaluate_SimpleQueryAtBaseline(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	record(t, r, "c1", "x", "y", "x")

	s, err := r.EvaluateConversationQuality(context.Background(), "c1", true, ptr(1.0), TypeSimpleQuery)
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.TurnReductionPercentage)
	assert.Equal(t, 0.0, s.CostReduction)
	// 0.4 + 0.3 + 0.2*2/5 + 0.1
	assert.InDelta(t, 0.88, s.QualityScore, 1e-9)

	m, _ := r.Conversation("c1")
	assert.True(t, m.Evaluated)
	require.NotNil(t, m.EndTime)
	assert.Equal(t, TypeSimpleQuery, m.ConversationType)
}

// P8
func TestEvaluate_UnknownConversation(t *testing.T) {
	r := NewRecorder(DefaultConfig())

	var (
		s   *QualitySummary
		err error
	)
	require.NotPanics(t, func() {
		s, err = r.EvaluateConversationQuality(context.Background(), "nonexistent-id", true, nil, "")
	})
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.Contains(t, ErrorMap(err), "error")
}

func TestEvaluate_SecondCallRejected(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	record(t, r, "c1", "x")
	ctx := context.Background()

	first, err := r.EvaluateConversationQuality(ctx, "c1", true, nil, TypeAnalysis)
	require.NoError(t, err)

	_, err = r.EvaluateConversationQuality(ctx, "c1", false, nil, TypeStrategy)
	assert.ErrorIs(t, err, ErrAlreadyEvaluated)

	m, _ := r.Conversation("c1")
	assert.Equal(t, first.QualityScore, m.QualityScore)
	assert.Equal(t, TypeAnalysis, m.ConversationType)
}

func TestEvaluate_BaselineLookup(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	tests := []struct {
		convType string
		baseline int
	}{
		{TypeSimpleQuery, 3},
		{TypeAnalysis, 8},
		{TypeStrategy, 12},
		{TypeComplexWorkflow, 20},
		{"brainstorm", 10},
		{"", 8},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.convType), func(t *testing.T) {
			conv := fmt.Sprintf("c%d", i)
			record(t, r, conv, "x")
			s, err := r.EvaluateConversationQuality(context.Background(), conv, false, nil, tt.convType)
			require.NoError(t, err)
			assert.Equal(t, tt.baseline, s.BaselineTurns)
		})
	}
}

func TestEvaluate_OverBaselineIsNegative(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	record(t, r, "c1", "a", "b", "a", "b", "a", "b")

	s, err := r.EvaluateConversationQuality(context.Background(), "c1", false, nil, TypeSimpleQuery)
	require.NoError(t, err)

	assert.Equal(t, -100.0, s.TurnReductionPercentage)
	assert.InDelta(t, -0.3, s.CostReduction, 1e-9)
	// 0.3*3/6 + 0.2*2/5
	assert.InDelta(t, 0.23, s.QualityScore, 1e-9)
}

func TestQualityScore_Components(t *testing.T) {
	tests := []struct {
		name       string
		resolution bool
		baseline   int
		total      int
		unique     int
		sat        *float64
		want       float64
	}{
		{"max", true, 8, 4, 5, ptr(1), 1.0},
		{"nothing", false, 8, 0, 0, nil, 0},
		{"efficiency capped", false, 20, 1, 0, nil, 0.3},
		{"diversity capped", false, 0, 1, 9, nil, 0.2},
		{"satisfaction clamped", false, 0, 1, 0, ptr(7), 0.1},
		{"negative satisfaction", false, 0, 1, 0, ptr(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QualityScore(tt.resolution, tt.baseline, tt.total, tt.unique, tt.sat)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSummary_Map(t *testing.T) {
	s := &QualitySummary{ConversationID: "c1", QualityScore: 0.5, UserSatisfaction: ptr(0.8)}
	m := s.Map()
	assert.Equal(t, "c1", m["conversation_id"])
	assert.Equal(t, 0.8, m["user_satisfaction"])
	assert.Nil(t, (*QualitySummary)(nil).Map())
	assert.Nil(t, ErrorMap(nil))
}

// =============================================================================
// 📈 Dashboard
// =============================================================================

func TestDashboard_Averages(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	ctx := context.Background()
	record(t, r, "c1", "a", "b", "c", "d")
	record(t, r, "c2", "a", "b")
	record(t, r, "open", "a")

	_, err := r.EvaluateConversationQuality(ctx, "c1", true, nil, TypeAnalysis)
	require.NoError(t, err)
	_, err = r.EvaluateConversationQuality(ctx, "c2", true, nil, TypeSimpleQuery)
	require.NoError(t, err)

	dash := r.GetKPIDashboard()

	assert.Equal(t, 3, dash.TotalConversations)
	assert.Equal(t, 2, dash.EvaluatedConversations)
	// (50 + 33.33) / 2
	assert.InDelta(t, (50.0+100.0/3.0)/2, dash.AvgTurnReduction, 1e-9)
	assert.InDelta(t, 0.4+0.1, dash.TotalCostSaved, 1e-9)
	assert.Equal(t, 2, dash.AgentEffectiveness["a"].Conversations)
	assert.InDelta(t, dash.AgentEffectiveness["c"].AvgQuality, dash.AgentEffectiveness["d"].AvgQuality, 1e-9)
	assert.Len(t, dash.RecentTrend, 3)
	assert.Equal(t, "open", dash.RecentTrend[2].ConversationID)
	assert.False(t, dash.RecentTrend[2].Evaluated)
}

func TestDashboard_RecentTrendKeepsLastTen(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	for i := 0; i < 15; i++ {
		record(t, r, fmt.Sprintf("c%02d", i), "x")
	}

	dash := r.GetKPIDashboard()

	require.Len(t, dash.RecentTrend, 10)
	assert.Equal(t, "c05", dash.RecentTrend[0].ConversationID)
	assert.Equal(t, "c14", dash.RecentTrend[9].ConversationID)
}

func TestDashboard_DecisionTimePercentiles(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	ctx := context.Background()
	// 100 个决策，耗时 1..100ms，分两个会话
	for i := 1; i <= 100; i++ {
		conv := "even"
		if i%2 == 1 {
			conv = "odd"
		}
		r.RecordSelection(ctx, decision(conv, i, "x", float64(101-i)))
	}

	pt := r.GetKPIDashboard().DecisionTime

	assert.Equal(t, 100, pt.Count)
	assert.Equal(t, 51.0, pt.P50)
	assert.Equal(t, 96.0, pt.P95)
	assert.Equal(t, 100.0, pt.P99)
}

func TestDashboard_Empty(t *testing.T) {
	dash := NewRecorder(DefaultConfig()).GetKPIDashboard()
	assert.Zero(t, dash.TotalConversations)
	assert.Zero(t, dash.AvgQualityScore)
	assert.Zero(t, dash.DecisionTime.P99)
	assert.NotNil(t, dash.RecentTrend)
	assert.NotNil(t, dash.AgentEffectiveness)
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, Percentile(nil, 50))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 99))
	assert.Equal(t, 3.0, Percentile([]float64{1, 2, 3}, 100))
	assert.Equal(t, 2.0, Percentile([]float64{1, 2, 3}, 50))
	assert.Equal(t, 1.0, Percentile([]float64{1, 2, 3}, -5))
}

// =============================================================================
// 🔁 Reset / 淘汰 / 并发
// =============================================================================

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	record(t, r, "c1", "x", "y")

	r.Reset()

	_, ok := r.Conversation("c1")
	assert.False(t, ok)
	dash := r.GetKPIDashboard()
	assert.Zero(t, dash.TotalSelections)
	assert.Empty(t, dash.AgentEffectiveness)
}

func TestRecorder_EvictsOldestEvaluated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConversations = 2
	r := NewRecorder(cfg)
	ctx := context.Background()

	record(t, r, "open", "x")
	record(t, r, "done", "x")
	_, err := r.EvaluateConversationQuality(ctx, "done", true, nil, "")
	require.NoError(t, err)
	record(t, r, "new", "x")

	_, ok := r.Conversation("done")
	assert.False(t, ok)
	_, ok = r.Conversation("open")
	assert.True(t, ok)
	_, ok = r.Conversation("new")
	assert.True(t, ok)

	// 看板计数与保留的决策保持一致
	dash := r.GetKPIDashboard()
	assert.Equal(t, 2, dash.TotalSelections)
	assert.Equal(t, dash.TotalSelections, dash.DecisionTime.Count)
	assert.Equal(t, 2, dash.AgentEffectiveness["x"].Selections)
	assert.Zero(t, dash.AgentEffectiveness["x"].Conversations)
	assert.Zero(t, dash.EvaluatedConversations)

	// 淘汰后的 ID 仍视为已使用
	assert.True(t, r.Known("done"))
	assert.True(t, r.Known("open"))
	assert.False(t, r.Known("never"))
}

func TestRecorder_EvictionDropsAgentWithNoRemainingSelections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConversations = 1
	r := NewRecorder(cfg)
	ctx := context.Background()

	record(t, r, "old", "x", "y")
	_, err := r.EvaluateConversationQuality(ctx, "old", true, nil, "")
	require.NoError(t, err)
	record(t, r, "new", "y")

	dash := r.GetKPIDashboard()
	assert.NotContains(t, dash.AgentEffectiveness, "x")
	assert.Equal(t, 1, dash.AgentEffectiveness["y"].Selections)
	assert.Equal(t, 1.0, dash.AgentEffectiveness["y"].SelectionRate)
	assert.Equal(t, 1, dash.DecisionTime.Count)

	r.Reset()
	assert.False(t, r.Known("old"))
}

func TestRecorder_EvictionNeverDropsOpenConversations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConversations = 1
	r := NewRecorder(cfg)

	record(t, r, "a", "x")
	record(t, r, "b", "x")

	assert.Equal(t, 2, r.GetKPIDashboard().TotalConversations)
}

func TestRecorder_ConcurrentConversations(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			conv := fmt.Sprintf("c%d", c)
			for turn := 1; turn <= 10; turn++ {
				r.RecordSelection(ctx, decision(conv, turn, fmt.Sprintf("agent-%d", turn%3), 1))
			}
			_, _ = r.EvaluateConversationQuality(ctx, conv, true, nil, TypeAnalysis)
			_ = r.GetKPIDashboard()
		}(c)
	}
	wg.Wait()

	dash := r.GetKPIDashboard()
	assert.Equal(t, 80, dash.TotalSelections)
	assert.Equal(t, 8, dash.EvaluatedConversations)
}

// =============================================================================
// 💾 ExportMetrics
// =============================================================================

func TestExportMetrics(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	for i := 0; i < 25; i++ {
		record(t, r, fmt.Sprintf("c%02d", i), "a", "b", "c", "d", "e", "f", "g")
	}

	path := filepath.Join(t.TempDir(), "nested", "metrics.json")
	require.NoError(t, r.ExportMetrics(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out MetricsExport
	require.NoError(t, json.Unmarshal(data, &out))

	require.Len(t, out.Conversations, 20)
	assert.Equal(t, "c05", out.Conversations[0].ConversationID)
	for _, c := range out.Conversations {
		assert.Len(t, c.Decisions, 5)
		assert.Equal(t, 7, c.TotalTurns)
	}
	assert.Equal(t, 175, out.Dashboard.TotalSelections)

	// 导出不影响内存中的完整记录
	m, _ := r.Conversation("c24")
	assert.Len(t, m.Decisions, 7)
}

func TestExportMetrics_BadPath(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	err := r.ExportMetrics(filepath.Join(file, "metrics.json"))
	assert.Error(t, err)
}
