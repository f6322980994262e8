package configs

// AppName 应用名，用于日志、指标与对象存储客户端标识.
const AppName = "fastlink"

// AppVersion 构建版本，可通过 -ldflags "-X github.com/yeisme/fastlink/pkg/configs.AppVersion=..." 覆盖.
var AppVersion = "0.1.0"
