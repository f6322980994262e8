package configs

import "github.com/spf13/viper"

const (
	DefaultRateLimitEnabled = true
	DefaultRateLimitRPS     = 1.0 // 约等于每分钟 60 次
	DefaultRateLimitBurst   = 60
	DefaultRateLimitKey     = "ip"
)

// RateLimitConfig 入站限流配置，令牌桶.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"gt=0"`
	Burst   int     `mapstructure:"burst" rule:"min=1"`
	// Key 限流维度：global、ip、header:Header-Name
	Key string `mapstructure:"key" rule:"required"`
	// MaxKeys 单进程最多跟踪的限流键数量
	MaxKeys int `mapstructure:"max_keys" rule:"min=1"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.max_keys", 100000)
}
