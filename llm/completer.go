package llm

import (
	"context"
	"errors"
)

// ErrEmptyPrompt 提示词为空
var ErrEmptyPrompt = errors.New("llm: empty prompt")

// Message 发送给模型的一条消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest 补全请求
type CompletionRequest struct {
	// 系统提示词（agent 角色定义）
	System string
	// 额外的上下文消息（按时间顺序）
	Messages []Message
	// 当前轮的用户/编排器提示
	Prompt string
	// 0 表示使用客户端默认值
	MaxTokens   int
	Temperature float32
}

// Completion 补全结果：文本、消耗 token 与成本
type Completion struct {
	Text             string  `json:"text"`
	Model            string  `json:"model,omitempty"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// TotalTokens 总 token 数
func (c *Completion) TotalTokens() int {
	if c == nil {
		return 0
	}
	return c.PromptTokens + c.CompletionTokens
}

// Completer LLM 补全能力（黑盒）
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompleterFunc 函数适配器
type CompleterFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// Pricing 每百万 token 的价格（USD）
type Pricing struct {
	InputPerMillion      float64 `yaml:"input_per_million" json:"input_per_million"`
	CompletionPerMillion float64 `yaml:"completion_per_million" json:"completion_per_million"`
}

// Cost 按价格表计算成本
func (p Pricing) Cost(promptTokens, completionTokens int) float64 {
	return (float64(promptTokens)*p.InputPerMillion + float64(completionTokens)*p.CompletionPerMillion) / 1_000_000
}
