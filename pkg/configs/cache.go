package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultCacheTTL        = 300   // 元数据缓存 TTL（秒），删除需要在这个窗口内可见
	DefaultCacheMaxEntries = 10000 // 一级缓存最大条目数
	DefaultCacheShared     = false // 是否启用基于 KV 的二级缓存
)

// CacheConfig origin 元数据缓存配置.
type CacheConfig struct {
	TTL        int `mapstructure:"ttl"         rule:"min=1,max=3600"`
	MaxEntries int `mapstructure:"max_entries" rule:"min=1"`
	// Shared 为 true 时在一级 LRU 之下叠加 KV 二级缓存，多实例共享
	Shared bool `mapstructure:"shared"`
	// KeyPrefix 二级缓存键前缀
	KeyPrefix string `mapstructure:"key_prefix"`
}

// TTLDuration 返回 TTL.
func (c *CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

func (c *CacheConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.max_entries", DefaultCacheMaxEntries)
	v.SetDefault("cache.shared", DefaultCacheShared)
	v.SetDefault("cache.key_prefix", "meta:")
}
