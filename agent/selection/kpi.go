package selection

import (
	"math"
	"sort"
	"time"
)

const recentTrendSize = 10

// GetKPIDashboard 汇总所有会话的 KPI。
// 平均值只统计已评估会话；决策耗时分位数覆盖全部决策。
func (r *Recorder) GetKPIDashboard() KPIDashboard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dash := KPIDashboard{
		TotalConversations: len(r.conversations),
		TotalSelections:    r.totalSelections,
		AgentEffectiveness: make(map[string]AgentEffectiveness, len(r.agents)),
		RecentTrend:        []TrendPoint{},
		GeneratedAt:        time.Now(),
	}

	var (
		reductionSum float64
		qualitySum   float64
		times        []float64
	)
	for _, id := range r.order {
		m := r.conversations[id]
		for _, d := range m.Decisions {
			times = append(times, d.DecisionTimeMs)
		}
		if !m.Evaluated {
			continue
		}
		dash.EvaluatedConversations++
		reductionSum += m.TurnReductionPercentage
		qualitySum += m.QualityScore
		dash.TotalCostSaved += m.CostReduction
	}
	if dash.EvaluatedConversations > 0 {
		n := float64(dash.EvaluatedConversations)
		dash.AvgTurnReduction = reductionSum / n
		dash.AvgQualityScore = qualitySum / n
	}

	for agent, st := range r.agents {
		eff := AgentEffectiveness{
			Selections:    st.selections,
			Conversations: st.conversations,
		}
		if r.totalSelections > 0 {
			eff.SelectionRate = float64(st.selections) / float64(r.totalSelections)
		}
		if st.conversations > 0 {
			eff.AvgQuality = st.qualitySum / float64(st.conversations)
		}
		dash.AgentEffectiveness[agent] = eff
	}

	from := len(r.order) - recentTrendSize
	if from < 0 {
		from = 0
	}
	for _, id := range r.order[from:] {
		m := r.conversations[id]
		dash.RecentTrend = append(dash.RecentTrend, TrendPoint{
			ConversationID:          m.ConversationID,
			StartTime:               m.StartTime,
			TotalTurns:              m.TotalTurns,
			UniqueSpeakers:          m.UniqueSpeakers,
			QualityScore:            m.QualityScore,
			TurnReductionPercentage: m.TurnReductionPercentage,
			Evaluated:               m.Evaluated,
		})
	}

	sort.Float64s(times)
	dash.DecisionTime = DecisionTimePercentiles{
		P50:   Percentile(times, 50),
		P95:   Percentile(times, 95),
		P99:   Percentile(times, 99),
		Count: len(times),
	}
	return dash
}

// Percentile 在已排序切片上取 sorted[floor(n*p/100)]，下标超界时取最后一个
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * p / 100))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
