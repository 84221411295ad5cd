// =============================================================================
// 🧠 MockContextBuilder - 记忆上下文构建器模拟实现
// =============================================================================
// 用于测试的 memory.ContextBuilder，支持固定结果、错误注入、延迟和调用记录
//
// 使用方法:
//
//	builder := mocks.NewMockContextBuilder().WithContext(&memory.Context{Content: "Facts: ..."})
//	inj := turncontext.NewInjector(cfg, builder)
//	assert.Equal(t, 1, builder.CallCount())
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/convergio/agent/memory"
)

// MockContextBuilder 是 memory.ContextBuilder 的模拟实现
type MockContextBuilder struct {
	mu sync.Mutex

	result *memory.Context
	err    error
	delay  time.Duration
	fn     func(ctx context.Context, req memory.Request) (*memory.Context, error)

	// 调用记录
	requests []memory.Request
}

// NewMockContextBuilder 创建返回空上下文的构建器
func NewMockContextBuilder() *MockContextBuilder {
	return &MockContextBuilder{}
}

// WithContext 设置固定返回的上下文
func (m *MockContextBuilder) WithContext(c *memory.Context) *MockContextBuilder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = c
	return m
}

// WithError 设置固定返回的错误
func (m *MockContextBuilder) WithError(err error) *MockContextBuilder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 每次调用前等待；ctx 先结束时返回 ctx.Err()
func (m *MockContextBuilder) WithDelay(d time.Duration) *MockContextBuilder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFunc 自定义构建逻辑，优先于固定结果
func (m *MockContextBuilder) WithFunc(fn func(ctx context.Context, req memory.Request) (*memory.Context, error)) *MockContextBuilder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// BuildMemoryContext implements memory.ContextBuilder.
func (m *MockContextBuilder) BuildMemoryContext(ctx context.Context, req memory.Request) (*memory.Context, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	result, err, delay, fn := m.result, m.err, m.delay, m.fn
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &memory.Context{}, nil
	}
	return result, nil
}

// CallCount 调用次数
func (m *MockContextBuilder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests 返回收到的请求副本
func (m *MockContextBuilder) Requests() []memory.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]memory.Request(nil), m.requests...)
}

// Reset 清空调用记录
func (m *MockContextBuilder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}
