package embedding

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI兼容接口的嵌入客户端
// 通过BaseURL也可以指向其他兼容服务
type OpenAIClient struct {
	config     *Config
	client     *openai.Client
	dimensions int
}

// NewOpenAIClient 创建OpenAI嵌入客户端
func NewOpenAIClient(cfg *Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeAuthFailed, "openai API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		config:     cfg,
		client:     openai.NewClientWithConfig(clientConfig),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed 将单条文本转换为向量
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
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
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, NewEmbeddingError(ErrCodeInvalidInput, "texts cannot be empty")
	}
	if c.config.BatchSize > 0 && len(texts) > c.config.BatchSize {
		return nil, NewEmbeddingError(ErrCodeBatchTooLarge,
			"batch size %d exceeds limit %d", len(texts), c.config.BatchSize)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.config.Model),
	})
	if err != nil {
		return nil, c.convertError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeInvalidResponse,
			"expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	// 响应里的Index字段才是权威顺序
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, NewEmbeddingError(ErrCodeInvalidResponse,
				"vector index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	if c.dimensions == 0 && len(vectors) > 0 {
		c.dimensions = len(vectors[0])
	}
	return vectors, nil
}

// convertError 将go-openai错误映射为嵌入错误
func (c *OpenAIClient) convertError(err error) *EmbeddingError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewEmbeddingError(ErrCodeAuthFailed, "authentication failed: %v", apiErr)
		case http.StatusTooManyRequests:
			return NewEmbeddingError(ErrCodeRateLimited, "rate limited: %v", apiErr)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return NewEmbeddingError(ErrCodeServiceUnavailable, "service unavailable: %v", apiErr)
		}
		return NewEmbeddingError(ErrCodeInvalidResponse, "api error: %v", apiErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewEmbeddingError(ErrCodeTimeout, "request cancelled: %v", err)
	}
	return NewEmbeddingError(ErrCodeServiceUnavailable, "request failed: %v", err)
}

// Name 返回提供商名称
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Model 返回嵌入模型名称
func (c *OpenAIClient) Model() string {
	return c.config.Model
}

// Dimensions 返回向量维度
func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}

// 在包初始化时注册OpenAI客户端
func init() {
	RegisterClient("openai", NewOpenAIClient)
}
