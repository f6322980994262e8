package configs

import "github.com/spf13/viper"

// AuthConfig 管理接口认证配置（Bearer Token）.
type AuthConfig struct {
	Enabled    bool     `mapstructure:"enabled"`     // 开启管理接口认证
	AdminToken string   `mapstructure:"admin_token"` // 管理接口令牌，启用时必填
	SkipPaths  []string `mapstructure:"skip_paths"`  // 跳过认证的路径前缀
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.admin_token", "")
	v.SetDefault("auth.skip_paths", []string{})
}
