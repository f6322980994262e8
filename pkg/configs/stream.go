package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultStreamChunkSize      = 1 << 20 // 1MiB
	DefaultStreamPrefetch       = 1       // 预取的分块数
	DefaultStreamMaxAttempts    = 3       // 单个分块最多尝试次数
	DefaultStreamBackoffInitial = 200     // 首次重试等待（毫秒）
	DefaultStreamBackoffMax     = 2000    // 重试等待上限（毫秒）
	DefaultStreamFetchTimeout   = 30      // 单个分块拉取超时（秒）
)

// StreamConfig 分块流式传输配置.
type StreamConfig struct {
	ChunkSize int `mapstructure:"chunk_size" rule:"min=4096,max=67108864"`
	// Prefetch 拉取与写出并行时最多缓冲的分块数，内存上限约为 (Prefetch+1)*ChunkSize
	Prefetch       int `mapstructure:"prefetch"        rule:"min=0,max=8"`
	MaxAttempts    int `mapstructure:"max_attempts"    rule:"min=1,max=10"`
	BackoffInitial int `mapstructure:"backoff_initial" rule:"min=1"`
	BackoffMax     int `mapstructure:"backoff_max"     rule:"min=1"`
	FetchTimeout   int `mapstructure:"fetch_timeout"   rule:"min=1,max=600"`
}

// BackoffInitialDuration 返回首次重试等待.
func (c *StreamConfig) BackoffInitialDuration() time.Duration {
	return time.Duration(c.BackoffInitial) * time.Millisecond
}

// BackoffMaxDuration 返回重试等待上限.
func (c *StreamConfig) BackoffMaxDuration() time.Duration {
	return time.Duration(c.BackoffMax) * time.Millisecond
}

// FetchTimeoutDuration 返回单个分块拉取超时.
func (c *StreamConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *StreamConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("stream.chunk_size", DefaultStreamChunkSize)
	v.SetDefault("stream.prefetch", DefaultStreamPrefetch)
	v.SetDefault("stream.max_attempts", DefaultStreamMaxAttempts)
	v.SetDefault("stream.backoff_initial", DefaultStreamBackoffInitial)
	v.SetDefault("stream.backoff_max", DefaultStreamBackoffMax)
	v.SetDefault("stream.fetch_timeout", DefaultStreamFetchTimeout)
}
