package configs

import "github.com/spf13/viper"

// MetricsConfig Prometheus 指标配置.
// 指标挂在独立的 debug 引擎上，不占用下载端口.
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	Host           string            `mapstructure:"host"`            // debug 服务监听地址
	Port           int               `mapstructure:"port"             rule:"min=0,max=65535"`
	Path           string            `mapstructure:"path"             rule:"required"`
	RuntimeMetrics bool              `mapstructure:"runtime_metrics"` // Go 运行时与进程指标
	Pprof          bool              `mapstructure:"pprof"`           // 同时挂载 /debug/pprof
	Labels         map[string]string `mapstructure:"labels"`          // 固定标签
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.host", "0.0.0.0")
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.labels", map[string]string{})
}
