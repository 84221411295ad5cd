package turncontext

import (
	"strings"
	"unicode"
)

// focusRule 根据 agent 名称中的关键词推断关注领域
type focusRule struct {
	keywords []string
	area     string
	consider string
}

var focusRules = []focusRule{
	{
		keywords: []string{"cfo", "finance", "financial", "accountant", "treasurer", "budget"},
		area:     "financial analysis",
		consider: "budget impact, ROI and cash-flow implications",
	},
	{
		keywords: []string{"security", "ciso", "cybersecurity", "risk"},
		area:     "security and risk",
		consider: "threat exposure, compliance obligations and mitigation cost",
	},
	{
		keywords: []string{"marketing", "cmo", "brand", "growth", "sales"},
		area:     "market positioning",
		consider: "target audience, channel mix and campaign ROI",
	},
	{
		keywords: []string{"legal", "counsel", "lawyer", "compliance"},
		area:     "legal and compliance",
		consider: "regulatory constraints and contractual exposure",
	},
	{
		keywords: []string{"cto", "tech", "technical", "engineer", "engineering", "architect", "developer", "devops"},
		area:     "technical feasibility",
		consider: "architecture, delivery effort and scalability",
	},
	{
		keywords: []string{"hr", "people", "talent", "recruiter"},
		area:     "people and organization",
		consider: "team capacity, hiring needs and culture impact",
	},
	{
		keywords: []string{"ceo", "strategy", "strategist", "strategic", "planner"},
		area:     "strategic direction",
		consider: "long-term goals, trade-offs and sequencing",
	},
	{
		keywords: []string{"data", "analyst", "analytics", "scientist"},
		area:     "data-driven insight",
		consider: "available evidence, key metrics and confidence level",
	},
}

const (
	defaultFocusArea = "general assistance"
	defaultConsider  = "the user's stated goal, constraints and open questions"
)

// AgentFocus 返回 agent 的关注领域与思考提示
func AgentFocus(agentName string) (area, consider string) {
	tokens := nameTokens(agentName)
	for _, rule := range focusRules {
		for _, kw := range rule.keywords {
			if _, ok := tokens[kw]; ok {
				return rule.area, rule.consider
			}
		}
	}
	return defaultFocusArea, defaultConsider
}

// nameTokens 按非字母数字切分，避免 "hr" 命中 "christopher"
func nameTokens(name string) map[string]struct{} {
	parts := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		out[p] = struct{}{}
	}
	return out
}
