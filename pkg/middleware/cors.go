package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware 下载接口的 CORS. 暴露 Range 相关响应头，便于浏览器端播放器拖动进度.
func CORSMiddleware(allowOrigins []string, debug bool) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = allowOrigins
	config.AllowMethods = []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Range", "If-None-Match"}
	config.ExposeHeaders = []string{
		"Content-Length", "Content-Range", "Accept-Ranges", "ETag", "Content-Disposition", "X-Cache", "X-Request-ID",
	}
	config.MaxAge = 24 * time.Hour

	if debug || len(allowOrigins) == 0 || (len(allowOrigins) == 1 && allowOrigins[0] == "*") {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
	}

	return cors.New(config)
}
