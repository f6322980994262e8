package configs

import "github.com/spf13/viper"

const (
	DefaultPolicyVersion    = "2024.1"
	DefaultPolicyMediaTTL   = 24 * 3600 // 图片/视频 TTL（秒）
	DefaultPolicyMediaSWR   = 24 * 3600 // stale-while-revalidate（秒）
	DefaultPolicyDefaultTTL = 300       // 其它可缓存内容 TTL（秒）
)

// PolicyConfig 扩展名缓存策略，origin 与 edge 共用同一份.
type PolicyConfig struct {
	Version    string `mapstructure:"version"     rule:"required"`
	MediaTTL   int    `mapstructure:"media_ttl"   rule:"min=0"`
	MediaSWR   int    `mapstructure:"media_swr"   rule:"min=0"`
	DefaultTTL int    `mapstructure:"default_ttl" rule:"min=0"`
	// 追加到内置表的扩展名，不带点
	ExtraImage        []string `mapstructure:"extra_image"`
	ExtraVideo        []string `mapstructure:"extra_video"`
	ExtraNonCacheable []string `mapstructure:"extra_non_cacheable"`
}

func (c *PolicyConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("policy.version", DefaultPolicyVersion)
	v.SetDefault("policy.media_ttl", DefaultPolicyMediaTTL)
	v.SetDefault("policy.media_swr", DefaultPolicyMediaSWR)
	v.SetDefault("policy.default_ttl", DefaultPolicyDefaultTTL)
	v.SetDefault("policy.extra_image", []string{})
	v.SetDefault("policy.extra_video", []string{})
	v.SetDefault("policy.extra_non_cacheable", []string{})
}
