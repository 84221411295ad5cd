package types

import "strings"

// Role 发言方角色
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// TurnRecord 对话历史中的一轮发言
// Turn 在同一会话内单调递增，顺序即插入顺序。
type TurnRecord struct {
	Turn    int    `json:"turn"`
	Agent   string `json:"agent"`
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content"`
}

// LastTurns 返回最近 n 轮（n 大于长度时返回全部，n<=0 返回空）
func LastTurns(history []TurnRecord, n int) []TurnRecord {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if n >= len(history) {
		return history
	}
	return history[len(history)-n:]
}

// Speakers 按首次出现顺序返回发言过的 agent
func Speakers(history []TurnRecord) []string {
	seen := make(map[string]struct{}, len(history))
	out := make([]string, 0, len(history))
	for _, t := range history {
		name := strings.TrimSpace(t.Agent)
		if name == "" || t.Role == RoleUser {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// TurnFromMap 从松散的 map 结构（例如反序列化的 JSON）转换为 TurnRecord。
// 缺失或类型不符的字段按零值处理，不会报错。
func TurnFromMap(m map[string]any) TurnRecord {
	var rec TurnRecord
	if m == nil {
		return rec
	}
	switch v := m["turn"].(type) {
	case int:
		rec.Turn = v
	case int64:
		rec.Turn = int(v)
	case float64:
		rec.Turn = int(v)
	}
	if s, ok := m["agent"].(string); ok {
		rec.Agent = s
	}
	if s, ok := m["content"].(string); ok {
		rec.Content = s
	}
	if s, ok := m["role"].(string); ok {
		rec.Role = Role(s)
	}
	return rec
}
