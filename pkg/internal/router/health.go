package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/fastlink/pkg/internal/handle"
)

// RegisterHealthCheckRoute 注册健康检查路由.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	g.GET("/health", handle.Health)

	healthRoutes := g.Group("/health")
	{
		healthRoutes.GET("/db", handle.HealthComponent("db"))
		healthRoutes.GET("/s3", handle.HealthComponent("s3"))
		healthRoutes.GET("/kv", handle.HealthComponent("kv"))
		healthRoutes.GET("/mq", handle.HealthComponent("mq"))
	}
}

// RegisterSchedulerRoutes 注册调度器相关路由.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	g.GET("/scheduler/jobs", handle.SchedulerJobs)
}
