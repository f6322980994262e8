package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
)

// AdminAuthMiddleware 校验 Authorization: Bearer <auth.admin_token>.
// 启用但未配置令牌时拒绝所有请求.
func AdminAuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	want := []byte(conf.AdminToken)

	return func(c *gin.Context) {
		if !conf.Enabled || isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="fastlink-admin"`)
			apperr.Abort(c, http.StatusUnauthorized, apperr.Public(apperr.ErrUnauthorized))

			return
		}

		c.Next()
	}
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "

	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(h[len(prefix):]), true
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
