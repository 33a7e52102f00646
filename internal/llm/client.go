package llm

import (
	"context"
	"fmt"
	"time"
)

// Client 文本生成客户端接口
type Client interface {
	// Chat 发送对话消息并获取补全
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// Name 返回提供商名称
	Name() string

	// Model 返回模型名称
	Model() string
}

// Config 生成客户端配置
type Config struct {
	APIKey       string        // API密钥
	BaseURL      string        // 服务地址，空则用提供商默认值
	Model        string        // 模型名称
	Timeout      time.Duration // 请求超时
	MaxRetries   int           // 临时故障的最大重试次数
	MaxTokens    int           // 最大生成token数
	Temperature  float32       // 采样温度
	TopP         float32       // 核采样阈值
	Referer      string        // OpenRouter要求的HTTP-Referer头
	Title        string        // OpenRouter要求的X-Title头
	NoSystemRole bool          // 模型不支持system角色时折叠进用户消息
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

// WithMaxTokens 设置最大生成token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature 设置采样温度
func WithTemperature(temperature float32) Option {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// WithTopP 设置核采样阈值
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
	}
}

// WithReferer 设置OpenRouter归因头
func WithReferer(referer, title string) Option {
	return func(c *Config) {
		c.Referer = referer
		c.Title = title
	}
}

// WithoutSystemRole 声明模型不支持system角色
func WithoutSystemRole() Option {
	return func(c *Config) {
		c.NoSystemRole = true
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		MaxTokens:   2000,
		Temperature: 0.7,
		TopP:        0.95,
	}
}

// Factory 客户端工厂函数
type Factory func(cfg *Config) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient 注册生成客户端工厂
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 按提供商名称创建生成客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, ok := clientFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", name)
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return factory(cfg)
}

// foldMessages 将对话折叠成单条用户消息
// 不支持system角色的模型用系统指令加空行再接用户内容
func foldMessages(messages []Message) []Message {
	var system, user string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		default:
			if user != "" {
				user += "\n\n"
			}
			user += m.Content
		}
	}

	combined := user
	if system != "" {
		combined = system + "\n\n" + user
	}
	return []Message{NewUserMessage(combined)}
}
