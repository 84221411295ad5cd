// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertTurnsEqual(t, expected, actual)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/convergio/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertTurnsEqual 断言两段对话轮次的序号、发言者与内容一致
func AssertTurnsEqual(t *testing.T, expected, actual []types.TurnRecord) {
	t.Helper()

	if len(expected) != len(actual) {
		t.Errorf("turn count mismatch: expected %d, got %d", len(expected), len(actual))
		return
	}

	for i := range expected {
		if expected[i].Turn != actual[i].Turn {
			t.Errorf("turn[%d] number mismatch: expected %d, got %d", i, expected[i].Turn, actual[i].Turn)
		}
		if expected[i].Agent != actual[i].Agent {
			t.Errorf("turn[%d] agent mismatch: expected %q, got %q", i, expected[i].Agent, actual[i].Agent)
		}
		if expected[i].Content != actual[i].Content {
			t.Errorf("turn[%d] content mismatch: expected %q, got %q", i, expected[i].Content, actual[i].Content)
		}
	}
}

// AssertJSONEqual 断言两个值的 JSON 表示相等
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	if !WaitFor(condition, timeout) {
		t.Error("condition was not satisfied within timeout")
	}
}

// =============================================================================
// ⏱️ 等待辅助
// =============================================================================

// WaitFor 等待条件满足或超时
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// =============================================================================
// 📦 数据辅助
// =============================================================================

// MustJSON 将值转换为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
