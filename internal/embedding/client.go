package embedding

import (
	"context"
	"fmt"
	"time"
)

// 默认嵌入模型，与既有索引保持一致，缺省配置下索引可以互相读取
const DefaultModel = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"

// Client 文本嵌入客户端接口
// 同一索引只能由同一个客户端的向量构成，不同模型的向量空间不可比
type Client interface {
	// Embed 将单条文本转换为向量
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 批量转换文本，返回向量顺序与输入一致
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name 返回提供商名称
	Name() string

	// Model 返回嵌入模型名称
	Model() string

	// Dimensions 返回向量维度，未知时返回0
	Dimensions() int
}

// Config 嵌入客户端配置
type Config struct {
	APIKey     string        // API密钥
	BaseURL    string        // 服务地址，空则用提供商默认值
	Model      string        // 模型名称
	Timeout    time.Duration // 请求超时
	MaxRetries int           // 临时故障的最大重试次数
	Dimensions int           // 向量维度，0表示由首次响应确定
	BatchSize  int           // 单次请求的最大文本数
}

// Option 配置选项函数
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL 设置服务地址
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithDimensions 设置向量维度
func WithDimensions(dims int) Option {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithBatchSize 设置批量大小
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		BatchSize:  50,
	}
}

// Factory 客户端工厂函数
type Factory func(cfg *Config) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient 注册嵌入客户端工厂
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 按提供商名称创建嵌入客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, ok := clientFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return factory(cfg)
}
