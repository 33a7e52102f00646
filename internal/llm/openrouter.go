package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouter聚合了多家模型提供商，暴露OpenAI兼容接口
const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "meta-llama/llama-4-maverick:free"
)

// OpenRouterClient OpenRouter生成客户端
type OpenRouterClient struct {
	config *Config
	client *openai.Client
}

// headerTransport 给每个请求附加OpenRouter的归因头
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

// RoundTrip 实现http.RoundTripper接口
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewOpenRouterClient 创建OpenRouter生成客户端
func NewOpenRouterClient(cfg *Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeAuthFailed, "openrouter API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenRouterModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}
	// Gemma系列不接受system角色消息
	if strings.Contains(cfg.Model, "gemma") {
		cfg.NoSystemRole = true
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	return &OpenRouterClient{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Chat 发送对话消息并获取补全
func (c *OpenRouterClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}
	if c.config.NoSystemRole {
		messages = foldMessages(messages)
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	request := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    chatMessages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, "context cancelled: %v", ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err = c.client.CreateChatCompletion(ctx, request)
		if err == nil {
			break
		}
		if le := c.convertError(err); !le.Retryable() {
			return nil, le
		}
	}
	if err != nil {
		return nil, c.convertError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeInvalidResponse, "response contains no choices")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, NewLLMError(ErrCodeEmptyCompletion, "model %s returned a blank completion", c.config.Model)
	}

	return &Response{
		Text:       text,
		ModelName:  resp.Model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}, nil
}

// convertError 将go-openai错误映射为生成服务错误
func (c *OpenRouterClient) convertError(err error) *LLMError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewLLMError(ErrCodeAuthFailed, "authentication failed: %v", apiErr)
		case http.StatusTooManyRequests:
			return NewLLMError(ErrCodeRateLimited, "rate limited: %v", apiErr)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return NewLLMError(ErrCodeServiceUnavailable, "service unavailable: %v", apiErr)
		case http.StatusBadRequest:
			return NewLLMError(ErrCodeInvalidRequest, "invalid request: %v", apiErr)
		}
		return NewLLMError(ErrCodeInvalidResponse, "api error: %v", apiErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewLLMError(ErrCodeTimeout, "request cancelled: %v", err)
	}
	return NewLLMError(ErrCodeServiceUnavailable, "request failed: %v", err)
}

// Name 返回提供商名称
func (c *OpenRouterClient) Name() string {
	return "openrouter"
}

// Model 返回模型名称
func (c *OpenRouterClient) Model() string {
	return c.config.Model
}

// 在包初始化时注册OpenRouter客户端
func init() {
	RegisterClient("openrouter", NewOpenRouterClient)
}
