package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAccessQueueSize     = 4096 // 下载计数缓冲
	DefaultAccessFlushInterval = 5    // 秒
	DefaultAccessFlushBatch    = 256  // 积累多少个不同对象后立即刷新
	DefaultAccessFlushTimeout  = 5    // 单次刷新写库超时（秒）
)

// AccessConfig 下载计数配置，计数为尽力而为，丢失可接受.
type AccessConfig struct {
	QueueSize     int `mapstructure:"queue_size"     rule:"min=1"`
	FlushInterval int `mapstructure:"flush_interval" rule:"min=1,max=3600"`
	FlushBatch    int `mapstructure:"flush_batch"    rule:"min=1"`
	FlushTimeout  int `mapstructure:"flush_timeout"  rule:"min=1,max=60"`
}

// FlushIntervalDuration 返回刷新间隔.
func (c *AccessConfig) FlushIntervalDuration() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}

// FlushTimeoutDuration 返回刷新超时.
func (c *AccessConfig) FlushTimeoutDuration() time.Duration {
	return time.Duration(c.FlushTimeout) * time.Second
}

func (c *AccessConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("access.queue_size", DefaultAccessQueueSize)
	v.SetDefault("access.flush_interval", DefaultAccessFlushInterval)
	v.SetDefault("access.flush_batch", DefaultAccessFlushBatch)
	v.SetDefault("access.flush_timeout", DefaultAccessFlushTimeout)
}
