package conflict

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/convergio/types"
)

// ConflictType 冲突类型
type ConflictType string

const (
	// TypeOppositeTerms 两轮发言分别出现一对反义词
	TypeOppositeTerms ConflictType = "opposite_terms"
)

// TermPair 一对反义词
type TermPair struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// Conflict 窗口内两轮发言之间检测到的矛盾
type Conflict struct {
	Turns  [2]int       `json:"turns"`
	Terms  [2]string    `json:"terms"`
	Type   ConflictType `json:"type"`
	Agents [2]string    `json:"agents"`
}

// Key 用于跨轮次去重
func (c Conflict) Key() string {
	return fmt.Sprintf("%s|%d|%d|%s|%s", c.Type, c.Turns[0], c.Turns[1], c.Terms[0], c.Terms[1])
}

// DefaultTermPairs 返回默认反义词表
func DefaultTermPairs() []TermPair {
	return []TermPair{
		{A: "approve", B: "reject"},
		{A: "on", B: "off"},
		{A: "increase", B: "decrease"},
		{A: "accept", B: "decline"},
		{A: "agree", B: "disagree"},
		{A: "enable", B: "disable"},
		{A: "support", B: "oppose"},
	}
}

type compiledPair struct {
	pair TermPair
	a, b *regexp.Regexp
}

// Detector 基于滑动窗口的反义词冲突检测器。
// 构造后只读，可被多个 goroutine 并发使用。
type Detector struct {
	pairs []compiledPair
}

// NewDetector 使用给定词表创建检测器，词表为空时使用默认词表
func NewDetector(pairs []TermPair) *Detector {
	if len(pairs) == 0 {
		pairs = DefaultTermPairs()
	}
	d := &Detector{pairs: make([]compiledPair, 0, len(pairs))}
	for _, p := range pairs {
		a := strings.ToLower(strings.TrimSpace(p.A))
		b := strings.ToLower(strings.TrimSpace(p.B))
		if a == "" || b == "" || a == b {
			continue
		}
		d.pairs = append(d.pairs, compiledPair{
			pair: TermPair{A: a, B: b},
			a:    wordPattern(a),
			b:    wordPattern(b),
		})
	}
	return d
}

// TermPairs 返回生效的词表副本
func (d *Detector) TermPairs() []TermPair {
	out := make([]TermPair, len(d.pairs))
	for i, p := range d.pairs {
		out[i] = p.pair
	}
	return out
}

// Detect 扫描最近 window 轮发言，返回所有反义词对冲突。
// 输出顺序：外层按轮次 i，内层按 j，再按词表顺序，先 A→B 后 B→A。
func (d *Detector) Detect(history []types.TurnRecord, window int) []Conflict {
	recent := types.LastTurns(history, window)
	if len(recent) < 2 || len(d.pairs) == 0 {
		return []Conflict{}
	}

	// 每轮每个词只匹配一次
	type hits struct{ a, b []bool }
	matched := make([]hits, len(recent))
	for i, turn := range recent {
		matched[i] = hits{a: make([]bool, len(d.pairs)), b: make([]bool, len(d.pairs))}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		for k, p := range d.pairs {
			matched[i].a[k] = p.a.MatchString(turn.Content)
			matched[i].b[k] = p.b.MatchString(turn.Content)
		}
	}

	conflicts := make([]Conflict, 0)
	for i := 0; i < len(recent); i++ {
		for j := i + 1; j < len(recent); j++ {
			for k, p := range d.pairs {
				if matched[i].a[k] && matched[j].b[k] {
					conflicts = append(conflicts, newConflict(recent[i], recent[j], p.pair.A, p.pair.B))
				}
				if matched[i].b[k] && matched[j].a[k] {
					conflicts = append(conflicts, newConflict(recent[i], recent[j], p.pair.B, p.pair.A))
				}
			}
		}
	}
	return conflicts
}

// DetectFromMaps 接受松散结构的历史，缺失字段按空值处理
func (d *Detector) DetectFromMaps(history []map[string]any, window int) []Conflict {
	turns := make([]types.TurnRecord, len(history))
	for i, m := range history {
		turns[i] = types.TurnFromMap(m)
	}
	return d.Detect(turns, window)
}

var defaultDetector = NewDetector(nil)

// DetectConflicts 使用默认词表检测冲突
func DetectConflicts(history []types.TurnRecord, window int) []Conflict {
	return defaultDetector.Detect(history, window)
}

func newConflict(first, second types.TurnRecord, termA, termB string) Conflict {
	return Conflict{
		Turns:  [2]int{first.Turn, second.Turn},
		Terms:  [2]string{termA, termB},
		Type:   TypeOppositeTerms,
		Agents: [2]string{first.Agent, second.Agent},
	}
}

// wordPattern 按单词边界匹配，避免 "on" 命中 "online"
func wordPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}
