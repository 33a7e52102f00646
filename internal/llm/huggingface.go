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
)

// HuggingFace文本生成的默认参数
const (
	defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"
	defaultHuggingFaceModel   = "mistralai/Mistral-7B-Instruct-v0.3"
	defaultHuggingFaceTokens  = 1000
)

// HuggingFaceClient HuggingFace推理API生成客户端
// 接口只接受单条文本输入，对话消息在发送前折叠成一条提示
type HuggingFaceClient struct {
	config     *Config
	httpClient *http.Client
}

// NewHuggingFaceClient 创建HuggingFace生成客户端
func NewHuggingFaceClient(cfg *Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeAuthFailed, "huggingface API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultHuggingFaceModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHuggingFaceBaseURL
	}
	if cfg.MaxTokens == 0 || cfg.MaxTokens > defaultHuggingFaceTokens {
		cfg.MaxTokens = defaultHuggingFaceTokens
	}

	return &HuggingFaceClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// hfGenerateRequest 文本生成请求体
type hfGenerateRequest struct {
	Inputs     string            `json:"inputs"`
	Parameters hfGenerateParams  `json:"parameters"`
	Options    hfGenerateOptions `json:"options"`
}

// hfGenerateParams 生成参数
type hfGenerateParams struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float32 `json:"temperature"`
	TopP           float32 `json:"top_p"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

// hfGenerateOptions 推理选项
type hfGenerateOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// hfGenerateResponse 文本生成响应
type hfGenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// hfGenerateError 错误响应
type hfGenerateError struct {
	Error string `json:"error"`
}

// Chat 发送对话消息并获取补全
// 系统指令和用户消息折叠成单条提示后发送
func (c *HuggingFaceClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	prompt := foldMessages(messages)[0].Content

	body, err := json.Marshal(hfGenerateRequest{
		Inputs: prompt,
		Parameters: hfGenerateParams{
			MaxNewTokens:   c.config.MaxTokens,
			Temperature:    c.config.Temperature,
			TopP:           c.config.TopP,
			DoSample:       true,
			ReturnFullText: false,
		},
		Options: hfGenerateOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, "failed to marshal request: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, "context cancelled: %v", ctx.Err())
			case <-time.After(backoff):
			}
		}

		text, err := c.doRequest(ctx, body)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				return nil, NewLLMError(ErrCodeEmptyCompletion,
					"model %s returned a blank completion", c.config.Model)
			}
			return &Response{
				Text:       text,
				ModelName:  c.config.Model,
				FinishTime: time.Now(),
			}, nil
		}

		lastErr = err
		if le, ok := err.(*LLMError); !ok || !le.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

// doRequest 发送一次生成请求
func (c *HuggingFaceClient) doRequest(ctx context.Context, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s", c.config.BaseURL, c.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", NewLLMError(ErrCodeInvalidRequest, "failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", NewLLMError(ErrCodeTimeout, "request cancelled: %v", ctx.Err())
		}
		return "", NewLLMError(ErrCodeServiceUnavailable, "request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewLLMError(ErrCodeInvalidResponse, "failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, respBody)
	}

	var completions []hfGenerateResponse
	if err := json.Unmarshal(respBody, &completions); err != nil {
		return "", NewLLMError(ErrCodeInvalidResponse, "failed to parse response: %v", err)
	}
	if len(completions) == 0 {
		return "", NewLLMError(ErrCodeInvalidResponse, "response contains no completions")
	}
	return completions[0].GeneratedText, nil
}

// statusError 将HTTP状态码映射为生成服务错误
func (c *HuggingFaceClient) statusError(status int, body []byte) *LLMError {
	var hfErr hfGenerateError
	message := string(body)
	if json.Unmarshal(body, &hfErr) == nil && hfErr.Error != "" {
		message = hfErr.Error
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewLLMError(ErrCodeAuthFailed, "authentication failed: %s", message)
	case http.StatusTooManyRequests:
		return NewLLMError(ErrCodeRateLimited, "rate limited: %s", message)
	case http.StatusServiceUnavailable:
		return NewLLMError(ErrCodeServiceUnavailable, "model loading: %s", message)
	default:
		return NewLLMError(ErrCodeServiceUnavailable, "unexpected status %d: %s", status, message)
	}
}

// Name 返回提供商名称
func (c *HuggingFaceClient) Name() string {
	return "huggingface"
}

// Model 返回模型名称
func (c *HuggingFaceClient) Model() string {
	return c.config.Model
}

// 在包初始化时注册HuggingFace客户端
func init() {
	RegisterClient("huggingface", NewHuggingFaceClient)
}
