package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastTurns(t *testing.T) {
	history := []TurnRecord{{Turn: 1}, {Turn: 2}, {Turn: 3}}

	assert.Nil(t, LastTurns(history, 0))
	assert.Nil(t, LastTurns(nil, 3))
	assert.Equal(t, history, LastTurns(history, 10))
	assert.Equal(t, []TurnRecord{{Turn: 2}, {Turn: 3}}, LastTurns(history, 2))
}

func TestSpeakers(t *testing.T) {
	history := []TurnRecord{
		{Turn: 0, Agent: "user", Role: RoleUser, Content: "hi"},
		{Turn: 1, Agent: "cfo"},
		{Turn: 2, Agent: "security"},
		{Turn: 3, Agent: "cfo"},
		{Turn: 4, Agent: "  "},
	}
	assert.Equal(t, []string{"cfo", "security"}, Speakers(history))
}

func TestTurnFromMap(t *testing.T) {
	rec := TurnFromMap(map[string]any{"turn": float64(3), "agent": "cfo", "content": "ok"})
	assert.Equal(t, TurnRecord{Turn: 3, Agent: "cfo", Content: "ok"}, rec)

	// 缺失字段与错误类型按零值处理
	rec = TurnFromMap(map[string]any{"turn": "x", "content": 12})
	assert.Equal(t, TurnRecord{}, rec)

	assert.Equal(t, TurnRecord{}, TurnFromMap(nil))
}
