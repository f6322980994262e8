// Package configs 管理应用程序配置，覆盖 origin 与 edge 两个进程.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv），支持环境变量覆盖与热重载.
//
// Example:
//
//	if err := configs.InitConfig("./"); err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := configs.GetConfig()
//	fmt.Println(cfg.Server.Port, cfg.Edge.OriginURL)
//
// 环境变量使用 FASTLINK 前缀，层级用下划线分隔，例如 FASTLINK_SERVER_PORT=9000.
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/fastlink/pkg/rule"
)

// EnvPrefix 环境变量前缀.
const EnvPrefix = "FASTLINK"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // origin HTTP 服务
		Edge           EdgeConfig           `mapstructure:"edge"`            // 边缘缓存代理
		Log            LogConfig            `mapstructure:"log"`             // 日志
		DB             DBConfig             `mapstructure:"db"`              // ObjectRecord 持久化
		S3             S3Config             `mapstructure:"s3"`              // 对象存储
		KV             KVConfig             `mapstructure:"kv"`              // 键值存储（边缘缓存、元数据二级缓存、上传状态）
		MQ             MQConfig             `mapstructure:"mq"`              // 上传队列
		Cache          CacheConfig          `mapstructure:"cache"`           // 元数据缓存
		Stream         StreamConfig         `mapstructure:"stream"`          // 分块流式传输
		Access         AccessConfig         `mapstructure:"access"`          // 下载计数
		Ingest         IngestConfig         `mapstructure:"ingest"`          // 上传接入
		Policy         PolicyConfig         `mapstructure:"policy"`          // 扩展名缓存策略
		Auth           AuthConfig           `mapstructure:"auth"`            // 管理接口认证
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // 入站限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // edge -> origin 与 origin -> 对象存储熔断
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // Prometheus
		Tracing        TracingConfig        `mapstructure:"tracing"`         // OpenTelemetry
		Events         EventsConfig         `mapstructure:"events"`          // 事件开关
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	// mu 保护热重载期间的 globalConfig.
	mu sync.RWMutex
)

// InitConfig 加载应用程序配置. path 可以是文件或目录；目录下找不到配置文件时仅使用默认值与环境变量.
func InitConfig(path string) error {
	v := viper.New()
	setAllDefaults(v)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return err
	}

	mu.Lock()
	globalConfig = cfg
	appViper = v
	mu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// Validate 使用 rule 标签校验配置.
func Validate(cfg *AppConfig) error {
	if err := rule.ValidateStruct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.Edge.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.S3.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.Cache.setDefaults(v)
	cfg.Stream.setDefaults(v)
	cfg.Access.setDefaults(v)
	cfg.Ingest.setDefaults(v)
	cfg.Policy.setDefaults(v)
	cfg.Auth.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.CircuitBreaker.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.Events.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Fprintln(os.Stderr, "config file changed:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error reloading config: %v\n", err)
			return
		}

		if err := Validate(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "reloaded config rejected: %v\n", err)
			return
		}

		mu.Lock()
		globalConfig = cfg
		mu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()

	cfg := globalConfig

	return &cfg
}

// GetViper 返回全局 Viper 实例，未初始化时为 nil.
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()

	return appViper
}

// SetConfig 直接替换全局配置，主要用于测试与内嵌场景.
func SetConfig(cfg AppConfig) {
	mu.Lock()
	globalConfig = cfg
	mu.Unlock()
}

// Defaults 返回仅包含默认值的配置.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig

	_ = v.Unmarshal(&cfg)

	return cfg
}

// Redacted 返回隐藏了敏感字段的配置副本，用于打印.
func (c AppConfig) Redacted() AppConfig {
	const mask = "******"

	redact := func(s *string) {
		if *s != "" {
			*s = mask
		}
	}

	redact(&c.DB.Password)
	redact(&c.S3.SecretAccessKey)
	redact(&c.KV.Redis.Password)
	redact(&c.KV.NATS.Password)
	redact(&c.MQ.Common.Password)
	redact(&c.MQ.Redis.Password)
	redact(&c.MQ.NATS.NKey)
	redact(&c.MQ.NATS.JWT)
	redact(&c.Auth.AdminToken)

	return c
}
