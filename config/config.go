package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Index     IndexConfig     `mapstructure:"index"`
	Splitter  SplitterConfig  `mapstructure:"splitter"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin运行模式：debug、release
}

// CorpusConfig 语料存储配置
type CorpusConfig struct {
	Storage string   `mapstructure:"storage"` // 存储类型：local、minio
	Paths   []string `mapstructure:"paths"`   // 本地语料目录
	Minio   struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		Prefix    string `mapstructure:"prefix"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`
}

// IndexConfig 嵌入索引配置
type IndexConfig struct {
	Type string `mapstructure:"type"` // 向量库后端：faiss、memory
	Path string `mapstructure:"path"` // 索引目录
}

// SplitterConfig 文本切分配置
type SplitterConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"` // huggingface、openai
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	BatchSize  int           `mapstructure:"batch_size"`
	Dimensions int           `mapstructure:"dimensions"` // 0表示由首次响应确定
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LLMConfig 生成服务配置
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"` // openrouter、huggingface
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Referer      string        `mapstructure:"referer"` // OpenRouter归因头
	Title        string        `mapstructure:"title"`
	NoSystemRole bool          `mapstructure:"no_system_role"` // 模型不接受system角色时折叠消息
}

// SearchConfig 检索配置
type SearchConfig struct {
	TopK   int     `mapstructure:"top_k"`
	FetchK int     `mapstructure:"fetch_k"`
	Lambda float32 `mapstructure:"lambda"`
}

// CacheConfig 回答缓存配置
type CacheConfig struct {
	Enable        bool          `mapstructure:"enable"`
	Type          string        `mapstructure:"type"` // memory、redis
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// DatabaseConfig 公报目录数据库配置
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // 空则只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load 加载配置文件
// 文件不存在时写出默认配置再使用；${VAR}形式的密钥从环境变量展开
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CHATSFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			if writeErr := v.SafeWriteConfigAs("config.yaml"); writeErr != nil {
				return nil, fmt.Errorf("failed to write default config: %v", writeErr)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %v", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	cfg.Embedding.APIKey = expandEnv(cfg.Embedding.APIKey)
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.Corpus.Minio.AccessKey = expandEnv(cfg.Corpus.Minio.AccessKey)
	cfg.Corpus.Minio.SecretKey = expandEnv(cfg.Corpus.Minio.SecretKey)
	cfg.Cache.RedisPassword = expandEnv(cfg.Cache.RedisPassword)
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("corpus.storage", "local")
	v.SetDefault("corpus.paths", []string{".", "data"})

	v.SetDefault("index.type", "faiss")
	v.SetDefault("index.path", "data/index")

	v.SetDefault("splitter.chunk_size", 2500)
	v.SetDefault("splitter.chunk_overlap", 800)

	v.SetDefault("embedding.provider", "huggingface")
	v.SetDefault("embedding.model", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("embedding.api_key", "${HF_API_KEY}")
	v.SetDefault("embedding.batch_size", 50)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.max_retries", 3)

	v.SetDefault("llm.provider", "openrouter")
	v.SetDefault("llm.model", "meta-llama/llama-4-maverick:free")
	v.SetDefault("llm.api_key", "${OPENROUTER_API_KEY}")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.referer", "https://chatsfp.obtic.sorbonne.fr")
	v.SetDefault("llm.title", "ChatSFP")

	v.SetDefault("search.top_k", 3)
	v.SetDefault("search.fetch_k", 20)
	v.SetDefault("search.lambda", 0.5)

	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("database.dsn", "data/chatsfp.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
}

// expandEnv 展开${VAR}形式的环境变量引用
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}"))
	}
	return value
}
