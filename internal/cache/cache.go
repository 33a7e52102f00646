package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Cache 回答缓存接口
// 同一模板下的同一问题直接返回缓存的回答，不重复调用生成服务
type Cache interface {
	// Get 取缓存值，第二个返回值表示键是否存在
	Get(key string) (string, bool, error)

	// Set 写入缓存值
	Set(key string, value string, ttl time.Duration) error

	// Delete 删除缓存项
	Delete(key string) error

	// Clear 清空缓存
	Clear() error
}

// Config 缓存配置
type Config struct {
	Type          string        // 缓存类型：memory、redis
	TTL           time.Duration // 默认过期时间
	RedisAddr     string        // Redis地址
	RedisPassword string        // Redis密码
	RedisDB       int           // Redis数据库编号
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Type: "memory",
		TTL:  time.Hour,
	}
}

// Factory 缓存工厂函数
type Factory func(config Config) (Cache, error)

var cacheFactories = make(map[string]Factory)

// RegisterCache 注册缓存工厂
func RegisterCache(name string, factory Factory) {
	cacheFactories[name] = factory
}

// NewCache 按类型创建缓存，零值字段回落到默认配置
func NewCache(config Config) (Cache, error) {
	def := DefaultConfig()
	if config.Type == "" {
		config.Type = def.Type
	}
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}

	factory, ok := cacheFactories[config.Type]
	if !ok {
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
	return factory(config)
}

// AnswerKey 生成回答缓存键
// 模板参与哈希，改模板后旧缓存自然失效
func AnswerKey(template, question string) string {
	h := sha256.New()
	h.Write([]byte(template))
	h.Write([]byte{0})
	h.Write([]byte(question))
	return "answer:" + hex.EncodeToString(h.Sum(nil))
}
