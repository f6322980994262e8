package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultEdgePort            = 8081
	DefaultEdgeHost            = "0.0.0.0"
	DefaultEdgeOriginURL       = "http://localhost:8080"
	DefaultEdgePublicURL       = "http://localhost:8081"
	DefaultEdgePathPrefix      = "/dl/"
	DefaultEdgeForwardTimeout  = 10               // 秒，等待 origin 响应头的上限
	DefaultEdgeCacheGeneration = "v1"             // 缓存代际标签，变更即整体失效
	DefaultEdgeMaxBodyBytes    = 64 * 1024 * 1024 // 64MB 以上的响应不写入缓存
)

// EdgeConfig 边缘缓存代理配置.
type EdgeConfig struct {
	Port       int    `mapstructure:"port"        rule:"min=1,max=65535"`
	Host       string `mapstructure:"host"        rule:"ip"`
	OriginURL  string `mapstructure:"origin_url"  rule:"required,url"`
	PublicURL  string `mapstructure:"public_url"  rule:"omitempty,url"`
	PathPrefix string `mapstructure:"path_prefix" rule:"required,startswith=/"`
	// ForwardTimeout 转发到 origin 时等待响应头的秒数
	ForwardTimeout  int    `mapstructure:"forward_timeout"  rule:"min=1,max=120"`
	CacheGeneration string `mapstructure:"cache_generation" rule:"required,max=32"`
	MaxBodyBytes    int    `mapstructure:"max_body_bytes"   rule:"min=0"`
	// StripHeaders 返回客户端前移除的 origin 响应头
	StripHeaders []string `mapstructure:"strip_headers"`
	// AllowOrigins CORS 允许的来源
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Addr 返回监听地址.
func (c *EdgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ForwardTimeoutDuration 返回转发超时.
func (c *EdgeConfig) ForwardTimeoutDuration() time.Duration {
	return time.Duration(c.ForwardTimeout) * time.Second
}

func (c *EdgeConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("edge.port", DefaultEdgePort)
	v.SetDefault("edge.host", DefaultEdgeHost)
	v.SetDefault("edge.origin_url", DefaultEdgeOriginURL)
	v.SetDefault("edge.public_url", DefaultEdgePublicURL)
	v.SetDefault("edge.path_prefix", DefaultEdgePathPrefix)
	v.SetDefault("edge.forward_timeout", DefaultEdgeForwardTimeout)
	v.SetDefault("edge.cache_generation", DefaultEdgeCacheGeneration)
	v.SetDefault("edge.max_body_bytes", DefaultEdgeMaxBodyBytes)
	v.SetDefault("edge.strip_headers", []string{"Set-Cookie", "Server", "X-Powered-By", "Via"})
	v.SetDefault("edge.allow_origins", []string{"*"})
}
