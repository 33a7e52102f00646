package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HuggingFace推理API默认地址
const defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceClient HuggingFace推理API嵌入客户端
// 调用feature-extraction管道，适用于sentence-transformers系列模型
type HuggingFaceClient struct {
	config     *Config
	httpClient *http.Client
	dimensions int // 首次成功响应后确定
}

// NewHuggingFaceClient 创建HuggingFace嵌入客户端
func NewHuggingFaceClient(cfg *Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeAuthFailed, "huggingface API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHuggingFaceBaseURL
	}

	return &HuggingFaceClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		dimensions: cfg.Dimensions,
	}, nil
}

// hfRequest 推理API请求体
type hfRequest struct {
	Inputs  []string  `json:"inputs"`
	Options hfOptions `json:"options"`
}

// hfOptions 推理选项
type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"` // 模型冷启动时等待而非立即503
}

// hfErrorResponse 推理API错误响应
type hfErrorResponse struct {
	Error string `json:"error"`
}

// Embed 将单条文本转换为向量
func (c *HuggingFaceClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidInput, "text cannot be empty")
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量转换文本，向量顺序与输入一致
func (c *HuggingFaceClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, NewEmbeddingError(ErrCodeInvalidInput, "texts cannot be empty")
	}
	if c.config.BatchSize > 0 && len(texts) > c.config.BatchSize {
		return nil, NewEmbeddingError(ErrCodeBatchTooLarge,
			"batch size %d exceeds limit %d", len(texts), c.config.BatchSize)
	}
	for i, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeInvalidInput, "text at position %d is empty", i)
		}
	}

	body, err := json.Marshal(hfRequest{
		Inputs:  texts,
		Options: hfOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidInput, "failed to marshal request: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, NewEmbeddingError(ErrCodeTimeout, "context cancelled: %v", ctx.Err())
			case <-time.After(backoff):
			}
		}

		vectors, err := c.doRequest(ctx, body)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, NewEmbeddingError(ErrCodeInvalidResponse,
					"expected %d vectors, got %d", len(texts), len(vectors))
			}
			if c.dimensions == 0 && len(vectors) > 0 {
				c.dimensions = len(vectors[0])
			}
			return vectors, nil
		}

		lastErr = err
		if ee, ok := err.(*EmbeddingError); !ok || !ee.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

// doRequest 发送一次推理请求
func (c *HuggingFaceClient) doRequest(ctx context.Context, body []byte) ([][]float32, error) {
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", c.config.BaseURL, c.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidInput, "failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewEmbeddingError(ErrCodeTimeout, "request cancelled: %v", ctx.Err())
		}
		return nil, NewEmbeddingError(ErrCodeServiceUnavailable, "request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidResponse, "failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, respBody)
	}

	var vectors [][]float32
	if err := json.Unmarshal(respBody, &vectors); err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidResponse,
			"failed to parse response: %v", err)
	}
	return vectors, nil
}

// statusError 将HTTP状态码映射为嵌入错误
func (c *HuggingFaceClient) statusError(status int, body []byte) *EmbeddingError {
	var hfErr hfErrorResponse
	message := string(body)
	if json.Unmarshal(body, &hfErr) == nil && hfErr.Error != "" {
		message = hfErr.Error
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewEmbeddingError(ErrCodeAuthFailed, "authentication failed: %s", message)
	case http.StatusTooManyRequests:
		return NewEmbeddingError(ErrCodeRateLimited, "rate limited: %s", message)
	case http.StatusServiceUnavailable:
		// 模型冷启动中，可以重试
		return NewEmbeddingError(ErrCodeServiceUnavailable, "model loading: %s", message)
	default:
		return NewEmbeddingError(ErrCodeServiceUnavailable,
			"unexpected status %d: %s", status, message)
	}
}

// Name 返回提供商名称
func (c *HuggingFaceClient) Name() string {
	return "huggingface"
}

// Model 返回嵌入模型名称
func (c *HuggingFaceClient) Model() string {
	return c.config.Model
}

// Dimensions 返回向量维度
func (c *HuggingFaceClient) Dimensions() int {
	return c.dimensions
}

// 在包初始化时注册HuggingFace客户端
func init() {
	RegisterClient("huggingface", NewHuggingFaceClient)
}
