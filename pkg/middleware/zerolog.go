// Package middleware 提供 origin 与 edge 共用的 gin 中间件.
package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fastlink/pkg/log"
)

// redactedParams 访问日志中隐藏的查询参数.
var redactedParams = []string{"code"}

// GinLoggerMiddleware 使用 zerolog 记录访问日志，访问码不落日志.
func GinLoggerMiddleware(service string) gin.HandlerFunc {
	logger := log.Component(service)

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()

		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event = event.
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("method", c.Request.Method).
			Str("path", redactPath(c.Request.URL)).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP())

		if id := GetRequestID(c); id != "" {
			event = event.Str("request_id", id)
		}

		if rng := c.GetHeader("Range"); rng != "" {
			event = event.Str("range", rng)
		}

		if hit := c.Writer.Header().Get("X-Cache"); hit != "" {
			event = event.Str("cache", hit)
		}

		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}

// redactPath 返回 path?query，redactedParams 中的值替换为 REDACTED.
func redactPath(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}

	q := u.Query()
	for _, p := range redactedParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
		}
	}

	return u.Path + "?" + q.Encode()
}
