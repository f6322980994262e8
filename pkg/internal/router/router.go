// Package router 管理路由配置，把 handle 中的处理器绑定到 gin 引擎.
package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/edge"
	"github.com/yeisme/fastlink/pkg/internal/handle"
	"github.com/yeisme/fastlink/pkg/internal/storage"
	"github.com/yeisme/fastlink/pkg/middleware"
	"github.com/yeisme/fastlink/pkg/scheduler"
)

// 服务名，用于指标与追踪标签.
const (
	ServiceOrigin = "origin"
	ServiceEdge   = "edge"
)

// OriginDeps origin 路由依赖.
type OriginDeps struct {
	Handlers  *handle.Handlers
	Manager   *storage.Manager
	Scheduler *scheduler.Scheduler
}

// Common 两个进程共用的全局中间件.
func Common(e *gin.Engine, service string, allowOrigins []string, debug bool) {
	e.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(service),
		middleware.PrometheusMiddleware(service),
		middleware.GinLoggerMiddleware(service),
		middleware.CORSMiddleware(allowOrigins, debug),
	)
}

// RegisterOrigin 注册 origin 的全部路由.
//
//	GET|HEAD /dl/:id[/*filename]   下载
//	GET      /file/:id/info        文件信息
//	GET      /health[/:component]  健康检查
//	GET      /swagger/*any         接口文档（仅 debug）
//	/admin/api/...                 管理接口（Bearer Token）
func RegisterOrigin(e *gin.Engine, cfg *configs.AppConfig, deps OriginDeps) {
	Common(e, ServiceOrigin, cfg.Server.AllowOrigins, cfg.Server.Debug)
	e.Use(
		middleware.StorageMiddleware(deps.Manager),
		middleware.SchedulerMiddleware(deps.Scheduler),
	)

	RegisterHealthCheckRoute(e.Group(""))
	RegisterSwaggerRoute(e, cfg)

	limited := e.Group("")
	if cfg.RateLimit.Enabled {
		limited.Use(middleware.RateLimitMiddleware(ServiceOrigin, cfg.RateLimit))
	}

	// 对象存储连续失败时直接返回 503，不再逐个请求重试
	limited.Use(middleware.CircuitBreakerMiddleware("origin-object-store", cfg.CircuitBreaker))

	RegisterDownloadRoutes(limited, deps.Handlers)

	// 下载体本身不压缩，避免破坏 Content-Length 与 Range
	RegisterInfoRoutes(limited.Group("", gzip.Gzip(gzip.DefaultCompression)), deps.Handlers)

	admin := e.Group("/admin/api",
		middleware.AdminAuthMiddleware(cfg.Auth),
		gzip.Gzip(gzip.DefaultCompression),
	)
	RegisterAdminRoutes(admin, deps.Handlers)
	RegisterSchedulerRoutes(admin)
}

// RegisterDownloadRoutes 注册下载路由.
func RegisterDownloadRoutes(g *gin.RouterGroup, h *handle.Handlers) {
	dl := g.Group("/dl")
	{
		dl.GET("/:id", h.Download)
		dl.HEAD("/:id", h.Download)
		dl.GET("/:id/*filename", h.Download)
		dl.HEAD("/:id/*filename", h.Download)
	}
}

// RegisterInfoRoutes 注册文件信息路由.
func RegisterInfoRoutes(g *gin.RouterGroup, h *handle.Handlers) {
	g.GET("/file/:id/info", h.Info)
}

// RegisterAdminRoutes 注册管理接口.
func RegisterAdminRoutes(g *gin.RouterGroup, h *handle.Handlers) {
	files := g.Group("/files")
	{
		files.GET("", h.ListFiles)
		files.DELETE("/:id", h.DeleteFile)
	}

	uploads := g.Group("/uploads")
	{
		uploads.POST("", h.CreateUpload)
		uploads.GET("/:pending_id", h.UploadStatus)
	}
}

// RegisterEdge 注册 edge 路由. 所有请求都交给代理处理.
func RegisterEdge(e *gin.Engine, cfg *configs.AppConfig, proxy *edge.Proxy) {
	Common(e, ServiceEdge, cfg.Edge.AllowOrigins, cfg.Server.Debug)

	if cfg.RateLimit.Enabled {
		e.Use(middleware.RateLimitMiddleware(ServiceEdge, cfg.RateLimit))
	}

	proxy.Mount(e)
}
