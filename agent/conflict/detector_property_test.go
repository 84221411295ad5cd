package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/BaSui01/convergio/types"
)

var vocabulary = []string{"approve", "reject", "on", "off", "increase", "decrease", "online", "budget", "the", "plan"}

func drawHistory(rt *rapid.T) []types.TurnRecord {
	n := rapid.IntRange(0, 30).Draw(rt, "turns")
	history := make([]types.TurnRecord, n)
	for i := 0; i < n; i++ {
		words := rapid.SliceOfN(rapid.SampledFrom(vocabulary), 0, 6).Draw(rt, "words")
		content := ""
		for k, w := range words {
			if k > 0 {
				content += " "
			}
			content += w
		}
		history[i] = types.TurnRecord{
			Turn:    i + 1,
			Agent:   rapid.SampledFrom([]string{"cfo", "cso", "cmo"}).Draw(rt, "agent"),
			Content: content,
		}
	}
	return history
}

// TestProperty_Detect_Pure 相同输入两次调用结果一致
func TestProperty_Detect_Pure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		history := drawHistory(rt)
		window := rapid.IntRange(-2, 40).Draw(rt, "window")

		first := DetectConflicts(history, window)
		second := DetectConflicts(history, window)
		assert.Equal(rt, first, second)
	})
}

// TestProperty_Detect_WithinWindow 冲突只来自最近 window 轮
func TestProperty_Detect_WithinWindow(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		history := drawHistory(rt)
		window := rapid.IntRange(1, 40).Draw(rt, "window")

		minTurn := len(history) - window + 1
		for _, c := range DetectConflicts(history, window) {
			assert.GreaterOrEqual(rt, c.Turns[0], minTurn)
			assert.Less(rt, c.Turns[0], c.Turns[1])
			assert.NotEqual(rt, c.Terms[0], c.Terms[1])
		}
	})
}
