package turncontext

import (
	"strings"
)

type contextBlock struct {
	facts    []string
	history  []string
	insights []string
}

func (b *contextBlock) empty() bool {
	return b == nil || (len(b.facts) == 0 && len(b.history) == 0 && len(b.insights) == 0)
}

// compose 拼装注入后的消息：原消息、检索上下文、领域提示、scratchpad
func compose(message, agentName string, block *contextBlock, notes []string) string {
	var sb strings.Builder
	sb.WriteString(message)

	if !block.empty() {
		sb.WriteString("\n\n--- Relevant Context ---")
		writeList(&sb, "Facts", block.facts)
		writeList(&sb, "Related History", block.history)
		writeList(&sb, "Insights", block.insights)
	}

	area, consider := AgentFocus(agentName)
	sb.WriteString("\n\nFocus Area: ")
	sb.WriteString(area)
	sb.WriteString("\nConsider: ")
	sb.WriteString(consider)

	if len(notes) > 0 {
		writeList(&sb, "\nScratchpad", notes)
	}
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString(":")
	for _, it := range items {
		sb.WriteString("\n- ")
		sb.WriteString(it)
	}
}

// contentLines 把只有 Content 的检索结果拆成逐行事实
func contentLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func displayAgent(name string) string {
	if name == "" {
		return "agent"
	}
	return name
}
