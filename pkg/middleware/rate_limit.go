package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/metrics"
)

const limiterIdleTTL = 10 * time.Minute

// keyedLimiters 按键维护令牌桶. 最多保留 maxKeys 个键，闲置超过 limiterIdleTTL 的键被淘汰.
type keyedLimiters struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *rate.Limiter]
	rps   rate.Limit
	burst int
}

func newKeyedLimiters(cfg configs.RateLimitConfig) *keyedLimiters {
	return &keyedLimiters{
		cache: expirable.NewLRU[string, *rate.Limiter](max(cfg.MaxKeys, 0), nil, limiterIdleTTL),
		rps:   rate.Limit(cfg.RPS),
		burst: cfg.Burst,
	}
}

func (k *keyedLimiters) allow(key string) bool {
	k.mu.Lock()

	l, ok := k.cache.Get(key)
	if !ok {
		l = rate.NewLimiter(k.rps, k.burst)
	}

	// 重新写入以刷新过期时间
	k.cache.Add(key, l)
	k.mu.Unlock()

	return l.Allow()
}

// RateLimitMiddleware 令牌桶限流，超限返回 429 信封.
func RateLimitMiddleware(service string, cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	rejected := metrics.RateLimited.WithLabelValues(service)
	reject := func(c *gin.Context) {
		rejected.Inc()
		c.Header("Retry-After", "1")
		apperr.Abort(c, http.StatusTooManyRequests, apperr.Public(apperr.ErrRateLimited))
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	if keyMode == "global" || keyMode == "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)

		return func(c *gin.Context) {
			if !limiter.Allow() {
				reject(c)
				return
			}

			c.Next()
		}
	}

	limiters := newKeyedLimiters(cfg)

	return func(c *gin.Context) {
		var key string

		if h, ok := strings.CutPrefix(keyMode, "header:"); ok {
			key = c.GetHeader(h)
		}

		if key == "" {
			key = clientIP(c)
		}

		if key == "" {
			key = "unknown"
		}

		if !limiters.allow(key) {
			reject(c)
			return
		}

		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = c.Request.RemoteAddr
		}
	}

	return ip
}
