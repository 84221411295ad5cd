package memory

import (
	"context"
	"strings"

	"github.com/BaSui01/convergio/types"
)

// Request 每轮上下文构建请求
type Request struct {
	ConversationID      string
	UserID              string
	AgentName           string
	Message             string
	History             []types.TurnRecord
	MaxFacts            int
	SimilarityThreshold float64
}

// Context 检索得到的记忆上下文。
// Content 为渲染好的整体文本；Facts/History/Insights 为结构化明细，可能为空。
type Context struct {
	Content  string   `json:"content"`
	Facts    []string `json:"facts,omitempty"`
	History  []string `json:"history,omitempty"`
	Insights []string `json:"insights,omitempty"`
}

// Empty 没有任何可注入内容
func (c *Context) Empty() bool {
	return c == nil || (strings.TrimSpace(c.Content) == "" && len(c.Facts) == 0 && len(c.History) == 0 && len(c.Insights) == 0)
}

// ContextBuilder 记忆/RAG 上下文构建能力，可能失败或超时
type ContextBuilder interface {
	BuildMemoryContext(ctx context.Context, req Request) (*Context, error)
}

// ContextBuilderFunc 函数适配器
type ContextBuilderFunc func(ctx context.Context, req Request) (*Context, error)

// BuildMemoryContext implements ContextBuilder.
func (f ContextBuilderFunc) BuildMemoryContext(ctx context.Context, req Request) (*Context, error) {
	return f(ctx, req)
}
