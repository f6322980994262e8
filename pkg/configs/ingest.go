package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultIngestPendingTimeout = 15 * 60      // 秒，超过即判定上传失败
	DefaultIngestStateTTL       = 7 * 24 * 3600 // 秒，上传状态保留时间
	DefaultIngestSweepCron      = "*/1 * * * *"
	DefaultIngestMaxFileSize    = 4 * 1024 * 1024 * 1024 // 4GB
)

// IngestConfig 上传队列接入配置.
type IngestConfig struct {
	// Worker 是否在 origin 内运行校验 worker（消费 upload.requested）
	Worker         bool   `mapstructure:"worker"`
	PendingTimeout int    `mapstructure:"pending_timeout" rule:"min=10"`
	StateTTL       int    `mapstructure:"state_ttl"       rule:"min=60"`
	SweepCron      string `mapstructure:"sweep_cron"      rule:"required"`
	MaxFileSize    int64  `mapstructure:"max_file_size"   rule:"min=1"`
	// AllowedExtensions 为空表示不限制
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// PendingTimeoutDuration 返回上传等待超时.
func (c *IngestConfig) PendingTimeoutDuration() time.Duration {
	return time.Duration(c.PendingTimeout) * time.Second
}

// StateTTLDuration 返回上传状态保留时间.
func (c *IngestConfig) StateTTLDuration() time.Duration {
	return time.Duration(c.StateTTL) * time.Second
}

func (c *IngestConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("ingest.worker", true)
	v.SetDefault("ingest.pending_timeout", DefaultIngestPendingTimeout)
	v.SetDefault("ingest.state_ttl", DefaultIngestStateTTL)
	v.SetDefault("ingest.sweep_cron", DefaultIngestSweepCron)
	v.SetDefault("ingest.max_file_size", DefaultIngestMaxFileSize)
	v.SetDefault("ingest.allowed_extensions", []string{
		"pdf", "doc", "docx", "txt", "zip", "rar", "7z",
		"mp4", "avi", "mkv", "mp3", "wav",
		"jpg", "jpeg", "png", "gif", "webp",
	})
}
