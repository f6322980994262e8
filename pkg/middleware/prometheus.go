package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fastlink/pkg/metrics"
)

// PrometheusMiddleware 记录请求数、耗时与在途请求. route 使用路由模板，避免对象 ID 撑爆标签.
func PrometheusMiddleware(service string) gin.HandlerFunc {
	inflight := metrics.ActiveConnections.WithLabelValues(service)

	return func(c *gin.Context) {
		start := time.Now()

		inflight.Inc()
		defer inflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		method := c.Request.Method
		metrics.RequestCounter.WithLabelValues(service, method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(service, method, route).Observe(time.Since(start).Seconds())
	}
}
