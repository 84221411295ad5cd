package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/convergio/llm/retry"
	"github.com/BaSui01/convergio/types"
)

// =============================================================================
// OpenAI 兼容补全客户端
// =============================================================================

// OpenAICompatConfig OpenAI 兼容接口配置
type OpenAICompatConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	APIKey       string        `yaml:"api_key" json:"api_key"`
	Model        string        `yaml:"model" json:"model"`
	EndpointPath string        `yaml:"endpoint_path" json:"endpoint_path"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature  float32       `yaml:"temperature" json:"temperature"`
	Pricing      Pricing       `yaml:"pricing" json:"pricing"`
}

// OpenAICompatClient 通过 /v1/chat/completions 实现 Completer
type OpenAICompatClient struct {
	cfg    OpenAICompatConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAICompatClient 创建客户端
func NewOpenAICompatClient(cfg OpenAICompatConfig, logger *zap.Logger) *OpenAICompatClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAICompatClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "llm_openai_compat")),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements Completer.
func (c *OpenAICompatClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if strings.TrimSpace(req.Prompt) == "" && len(req.Messages) == 0 {
		return nil, ErrEmptyPrompt
	}

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    buildMessages(req),
		MaxTokens:   firstNonZero(req.MaxTokens, c.cfg.MaxTokens),
		Temperature: req.Temperature,
	}
	if body.Temperature == 0 {
		body.Temperature = c.cfg.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("completion request failed: %w", err)
		if ctx.Err() == nil {
			return nil, retry.WrapRetryable(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(data, &out)
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		err := fmt.Errorf("completion failed: status=%d msg=%s", resp.StatusCode, msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, retry.WrapRetryable(err)
		}
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode completion response: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	completion := &Completion{
		Text:             out.Choices[0].Message.Content,
		Model:            out.Model,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}
	completion.Cost = c.cfg.Pricing.Cost(completion.PromptTokens, completion.CompletionTokens)

	fields := []zap.Field{
		zap.String("model", completion.Model),
		zap.Int("tokens", completion.TotalTokens()),
		zap.Float64("cost", completion.Cost),
	}
	if id, ok := types.ConversationID(ctx); ok {
		fields = append(fields, zap.String("conversation_id", id))
	}
	if agent, ok := types.AgentName(ctx); ok {
		fields = append(fields, zap.String("agent", agent))
	}
	c.logger.Debug("completion finished", fields...)
	return completion, nil
}

func buildMessages(req CompletionRequest) []Message {
	msgs := make([]Message, 0, len(req.Messages)+2)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.Messages...)
	if strings.TrimSpace(req.Prompt) != "" {
		msgs = append(msgs, Message{Role: "user", Content: req.Prompt})
	}
	return msgs
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
