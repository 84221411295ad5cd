package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/convergio/llm"
	"github.com/BaSui01/convergio/types"
)

// ConversationAgent 群聊参与者
type ConversationAgent interface {
	Name() string
	Expertise() []string
	SystemPrompt() string
	Reply(ctx context.Context, prompt string, history []types.TurnRecord) (*llm.Completion, error)
}

// AgentSpec agent 元数据
type AgentSpec struct {
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Expertise    []string `yaml:"expertise" json:"expertise"`
	SystemPrompt string   `yaml:"system_prompt" json:"system_prompt"`
	MaxTokens    int      `yaml:"max_tokens" json:"max_tokens"`
	Temperature  float32  `yaml:"temperature" json:"temperature"`
}

const defaultHistoryWindow = 12

// LLMAgent 基于 llm.Completer 的 ConversationAgent
type LLMAgent struct {
	spec          AgentSpec
	completer     llm.Completer
	historyWindow int
}

// NewLLMAgent 创建 agent
func NewLLMAgent(spec AgentSpec, completer llm.Completer) *LLMAgent {
	return &LLMAgent{spec: spec, completer: completer, historyWindow: defaultHistoryWindow}
}

func (a *LLMAgent) Name() string        { return a.spec.Name }
func (a *LLMAgent) Expertise() []string { return a.spec.Expertise }

// SystemPrompt 未配置时由名称与专长生成
func (a *LLMAgent) SystemPrompt() string {
	if a.spec.SystemPrompt != "" {
		return a.spec.SystemPrompt
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s", a.spec.Name)
	if a.spec.Description != "" {
		fmt.Fprintf(&sb, ", %s", a.spec.Description)
	}
	sb.WriteString(".")
	if len(a.spec.Expertise) > 0 {
		fmt.Fprintf(&sb, " Your expertise: %s.", strings.Join(a.spec.Expertise, ", "))
	}
	sb.WriteString(" You are part of a group of specialists. Be concise and build on what others said.")
	return sb.String()
}

// Reply 把最近的群聊历史转换为消息并调用模型
func (a *LLMAgent) Reply(ctx context.Context, prompt string, history []types.TurnRecord) (*llm.Completion, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, llm.ErrEmptyPrompt
	}
	recent := types.LastTurns(history, a.historyWindow)
	msgs := make([]llm.Message, 0, len(recent))
	for _, t := range recent {
		switch {
		case t.Role == types.RoleUser:
			msgs = append(msgs, llm.Message{Role: "user", Content: t.Content})
		case t.Agent == a.spec.Name:
			msgs = append(msgs, llm.Message{Role: "assistant", Content: t.Content})
		default:
			msgs = append(msgs, llm.Message{Role: "user", Content: fmt.Sprintf("[%s]: %s", t.Agent, t.Content)})
		}
	}

	completion, err := a.completer.Complete(ctx, llm.CompletionRequest{
		System:      a.SystemPrompt(),
		Messages:    msgs,
		Prompt:      prompt,
		MaxTokens:   a.spec.MaxTokens,
		Temperature: a.spec.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.spec.Name, err)
	}
	return completion, nil
}
