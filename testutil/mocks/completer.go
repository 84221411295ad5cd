// =============================================================================
// 🤖 MockCompleter - LLM 补全模拟实现
// =============================================================================
// 用于测试的 llm.Completer，按脚本依次返回回复
//
// 使用方法:
//
//	completer := mocks.NewMockCompleter().WithReplies("first", "second TERMINATE")
//	agent := conversation.NewLLMAgent(spec, completer)
// =============================================================================
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/convergio/llm"
)

// MockCompleter 是 llm.Completer 的模拟实现
type MockCompleter struct {
	mu sync.Mutex

	replies          []string
	err              error
	failAfter        int
	delay            time.Duration
	promptTokens     int
	completionTokens int
	cost             float64

	calls []llm.CompletionRequest
}

// NewMockCompleter 创建默认回复 "ok" 的补全器
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		replies:          []string{"ok"},
		failAfter:        -1,
		promptTokens:     10,
		completionTokens: 5,
		cost:             0.001,
	}
}

// WithReplies 第 n 次调用返回 replies[n]，用完后重复最后一条
func (m *MockCompleter) WithReplies(replies ...string) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(replies) > 0 {
		m.replies = replies
	}
	return m
}

// WithError 每次调用都返回 err
func (m *MockCompleter) WithError(err error) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter 前 n 次成功，之后全部失败
func (m *MockCompleter) WithFailAfter(n int) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithDelay 每次调用前等待；ctx 先结束时返回 ctx.Err()
func (m *MockCompleter) WithDelay(d time.Duration) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithUsage 设置每次调用的 token 与成本
func (m *MockCompleter) WithUsage(promptTokens, completionTokens int, cost float64) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = promptTokens
	m.completionTokens = completionTokens
	m.cost = cost
	return m
}

// Complete implements llm.Completer.
func (m *MockCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, req)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.failAfter >= 0 && n >= m.failAfter {
		return nil, errors.New("mock completer: forced failure")
	}

	text := m.replies[len(m.replies)-1]
	if n < len(m.replies) {
		text = m.replies[n]
	}
	return &llm.Completion{
		Text:             text,
		Model:            "mock",
		PromptTokens:     m.promptTokens,
		CompletionTokens: m.completionTokens,
		Cost:             m.cost,
	}, nil
}

// CallCount 调用次数
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 最近一次请求，没有调用时返回 nil
func (m *MockCompleter) LastRequest() *llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	req := m.calls[len(m.calls)-1]
	return &req
}

// Reset 清空调用记录
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
