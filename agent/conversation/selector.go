package conversation

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/BaSui01/convergio/types"
)

// ErrNoAgents 没有可用 agent
var ErrNoAgents = errors.New("no agents available")

// SelectionInput 选择下一位发言人所需的信息
type SelectionInput struct {
	ConversationID string
	Turn           int
	// 用户原始请求
	Request string
	// 最近一轮发言内容
	Message      string
	MissionPhase string
	Agents       []ConversationAgent
	History      []types.TurnRecord
}

// Selection 选择结果
type Selection struct {
	Agent           ConversationAgent
	Rationale       map[string]any
	ScoringFactors  map[string]float64
	CandidateScores map[string]float64
	RAGHints        []string
}

// SpeakerSelector 决定下一轮由谁发言
type SpeakerSelector interface {
	Select(ctx context.Context, in SelectionInput) (*Selection, error)
}

// RoundRobinSelector 按 agent 列表顺序轮流发言，位置由历史中的 agent 发言数决定
type RoundRobinSelector struct{}

// Select implements SpeakerSelector.
func (RoundRobinSelector) Select(_ context.Context, in SelectionInput) (*Selection, error) {
	if len(in.Agents) == 0 {
		return nil, ErrNoAgents
	}
	spoken := 0
	for _, t := range in.History {
		if t.Role != types.RoleUser {
			spoken++
		}
	}
	agent := in.Agents[spoken%len(in.Agents)]
	return &Selection{
		Agent:           agent,
		Rationale:       map[string]any{"strategy": "round_robin", "position": spoken % len(in.Agents)},
		ScoringFactors:  map[string]float64{},
		CandidateScores: map[string]float64{agent.Name(): 1},
	}, nil
}

// 专长选择器权重
const (
	WeightExpertise = 0.6
	WeightRecency   = 0.25
	WeightMention   = 0.15

	// 命中两个专长关键词即视为完全匹配
	expertiseSaturation = 2.0
)

// ExpertiseSelector 按专长关键词重合、发言间隔与点名综合打分，同分取列表中靠前者
type ExpertiseSelector struct {
	mu       sync.Mutex
	mentions map[string]*regexp.Regexp
}

// NewExpertiseSelector 创建选择器
func NewExpertiseSelector() *ExpertiseSelector {
	return &ExpertiseSelector{mentions: make(map[string]*regexp.Regexp)}
}

// Select implements SpeakerSelector.
func (s *ExpertiseSelector) Select(_ context.Context, in SelectionInput) (*Selection, error) {
	if len(in.Agents) == 0 {
		return nil, ErrNoAgents
	}

	query := wordSet(in.Request + " " + in.Message)
	lastSpoke := lastSpokeDistance(in.History)

	var (
		best        ConversationAgent
		bestScore   = -1.0
		bestFactors map[string]float64
		bestHits    []string
		mentioned   bool
		scores      = make(map[string]float64, len(in.Agents))
	)
	for _, agent := range in.Agents {
		hits := matchedKeywords(agent.Expertise(), query)
		overlap := float64(len(hits)) / expertiseSaturation
		if overlap > 1 {
			overlap = 1
		}

		recency := 1.0
		switch lastSpoke[agent.Name()] {
		case 1:
			recency = 0
		case 2:
			recency = 0.5
		}

		mention := 0.0
		if s.mentioned(agent.Name(), in.Message) {
			mention = 1
		}

		score := WeightExpertise*overlap + WeightRecency*recency + WeightMention*mention
		scores[agent.Name()] = score
		if score > bestScore {
			best, bestScore = agent, score
			bestFactors = map[string]float64{
				"expertise_overlap": overlap,
				"recency":           recency,
				"direct_mention":    mention,
			}
			bestHits = hits
			mentioned = mention > 0
		}
	}

	return &Selection{
		Agent: best,
		Rationale: map[string]any{
			"strategy":         "expertise",
			"matched_keywords": bestHits,
			"mentioned":        mentioned,
			"score":            bestScore,
			"mission_phase":    in.MissionPhase,
		},
		ScoringFactors:  bestFactors,
		CandidateScores: scores,
		RAGHints:        bestHits,
	}, nil
}

func (s *ExpertiseSelector) mentioned(name, message string) bool {
	name = strings.TrimSpace(name)
	if name == "" || message == "" {
		return false
	}
	s.mu.Lock()
	re, ok := s.mentions[name]
	if !ok {
		re = regexp.MustCompile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(name) + `($|[^\pL\pN])`)
		s.mentions[name] = re
	}
	s.mu.Unlock()
	return re.MatchString(message)
}

// lastSpokeDistance agent 距离上次发言的轮数，1 表示刚发言
func lastSpokeDistance(history []types.TurnRecord) map[string]int {
	out := make(map[string]int)
	distance := 0
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Role == types.RoleUser {
			continue
		}
		distance++
		if _, ok := out[t.Agent]; !ok {
			out[t.Agent] = distance
		}
	}
	return out
}

// matchedKeywords 返回命中的专长关键词（多词关键词要求每个词都出现）
func matchedKeywords(expertise []string, query map[string]struct{}) []string {
	var hits []string
	for _, kw := range expertise {
		words := wordSet(kw)
		if len(words) == 0 {
			continue
		}
		all := true
		for w := range words {
			if _, ok := query[w]; !ok {
				all = false
				break
			}
		}
		if all {
			hits = append(hits, kw)
		}
	}
	sort.Strings(hits)
	return hits
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = struct{}{}
	}
	return out
}
