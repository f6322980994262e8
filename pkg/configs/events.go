package configs

import "github.com/spf13/viper"

// EventsConfig 控制领域事件的发布开关.
// 上传流程相关的主题（requested/completed/failed）始终发布，不受开关控制.
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"`
	Object  ObjectEventsConfig `mapstructure:"object"`
}

// ObjectEventsConfig 对象相关事件开关.
type ObjectEventsConfig struct {
	Deleted  bool `mapstructure:"deleted"`
	Accessed bool `mapstructure:"accessed"` // 每次下载都会产生，量大，默认关闭
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.object.deleted", true)
	v.SetDefault("events.object.accessed", false)
}
