// =============================================================================
// 📦 对话测试数据
// =============================================================================
// 预置的董事会式多 agent 对话轮次，供冲突检测、上下文注入与选择测试使用
// =============================================================================
package fixtures

import (
	"fmt"

	"github.com/BaSui01/convergio/types"
)

// Agent 名称
const (
	CFO       = "Amy-CFO"
	Security  = "Luca-Security-Expert"
	Marketing = "Sofia-Marketing-Strategist"
	Architect = "Baccio-Tech-Architect"
)

// UserTurn 用户轮
func UserTurn(turn int, content string) types.TurnRecord {
	return types.TurnRecord{Turn: turn, Agent: "user", Role: types.RoleUser, Content: content}
}

// AgentTurn agent 轮
func AgentTurn(turn int, agent, content string) types.TurnRecord {
	return types.TurnRecord{Turn: turn, Agent: agent, Role: types.RoleAgent, Content: content}
}

// BudgetDiscussion 没有冲突的预算讨论
func BudgetDiscussion() []types.TurnRecord {
	return []types.TurnRecord{
		UserTurn(0, "Should we fund the security program next quarter?"),
		AgentTurn(1, CFO, "The budget can cover it if ROI lands within a year."),
		AgentTurn(2, Security, "The risk reduction is significant for compliance."),
		AgentTurn(3, Marketing, "A secure brand helps the launch campaign."),
	}
}

// ConflictingHistory 包含一次 approve/reject 冲突：CFO 第 1 轮与 Security 第 2 轮
func ConflictingHistory() []types.TurnRecord {
	return []types.TurnRecord{
		AgentTurn(1, CFO, "I approve the proposal."),
		AgentTurn(2, Security, "I reject it for now."),
		AgentTurn(3, Architect, "The architecture is ready either way."),
	}
}

// LongHistory 轮流发言的 n 轮对话
func LongHistory(n int) []types.TurnRecord {
	agents := []string{CFO, Security, Marketing, Architect}
	turns := make([]types.TurnRecord, 0, n)
	for i := 1; i <= n; i++ {
		agent := agents[(i-1)%len(agents)]
		turns = append(turns, AgentTurn(i, agent, fmt.Sprintf("%s view for round %d", agent, i)))
	}
	return turns
}

// AsMaps 把轮次转换为 HTTP 接口使用的松散结构
func AsMaps(turns []types.TurnRecord) []map[string]any {
	out := make([]map[string]any, len(turns))
	for i, t := range turns {
		out[i] = map[string]any{
			"turn":    t.Turn,
			"agent":   t.Agent,
			"role":    string(t.Role),
			"content": t.Content,
		}
	}
	return out
}
