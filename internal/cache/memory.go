package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 进程内缓存
type MemoryCache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

// NewMemoryCache 创建进程内缓存
func NewMemoryCache(config Config) (Cache, error) {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{
		store:      gocache.New(ttl, 10*time.Minute),
		defaultTTL: ttl,
	}, nil
}

// Get 取缓存值
func (c *MemoryCache) Get(key string) (string, bool, error) {
	value, found := c.store.Get(key)
	if !found {
		return "", false, nil
	}
	text, ok := value.(string)
	if !ok {
		return "", false, nil
	}
	return text, true, nil
}

// Set 写入缓存值
func (c *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.store.Set(key, value, ttl)
	return nil
}

// Delete 删除缓存项
func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

// Clear 清空缓存
func (c *MemoryCache) Clear() error {
	c.store.Flush()
	return nil
}

// 在包初始化时注册内存缓存
func init() {
	RegisterCache("memory", NewMemoryCache)
}
