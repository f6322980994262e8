package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	return r
}

func do(r http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestAdminAuth(t *testing.T) {
	r := newEngine(AdminAuthMiddleware(configs.AuthConfig{Enabled: true, AdminToken: "s3cret"}))

	w := do(r, "/x", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var env apperr.Envelope
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Error)
	assert.Equal(t, http.StatusUnauthorized, env.Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", map[string]string{"Authorization": "bearer s3cret"}).Code)
}

func TestAdminAuth_EmptyTokenRejects(t *testing.T) {
	r := newEngine(AdminAuthMiddleware(configs.AuthConfig{Enabled: true}))

	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", map[string]string{"Authorization": "Bearer "}).Code)
}

func TestRateLimit_PerIP(t *testing.T) {
	cfg := configs.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2, Key: "ip", MaxKeys: 10}
	r := newEngine(RateLimitMiddleware("test", cfg))

	assert.Equal(t, http.StatusOK, do(r, "/x", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", nil).Code)

	w := do(r, "/x", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var env apperr.Envelope
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, http.StatusTooManyRequests, env.Code)

	other := httptest.NewRequest(http.MethodGet, "/x", nil)
	other.RemoteAddr = "10.0.0.2:1234"

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, other)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestKeyedLimiters_BoundedKeys(t *testing.T) {
	l := newKeyedLimiters(configs.RateLimitConfig{RPS: 1, Burst: 1, MaxKeys: 3})

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	for _, k := range []string{"b", "c", "d", "e"} {
		l.allow(k)
	}

	assert.LessOrEqual(t, l.cache.Len(), 3)

	_, ok := l.cache.Peek("a")
	assert.False(t, ok, "least recently used key is evicted")

	// 被淘汰的键重新获得完整的桶
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("e"))
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestIDMiddleware())

	w := do(r, "/x", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(r, "/x", map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestRedactPath(t *testing.T) {
	u, err := url.Parse("/dl/abc?code=topsecret&x=1")
	require.NoError(t, err)

	got := redactPath(u)
	assert.NotContains(t, got, "topsecret")
	assert.Contains(t, got, "code=REDACTED")
	assert.Contains(t, got, "x=1")

	u, _ = url.Parse("/health")
	assert.Equal(t, "/health", redactPath(u))
}

func TestCircuitBreaker_OpensOn5xx(t *testing.T) {
	cfg := configs.CircuitBreakerConfig{
		Enabled: true, FailureRate: 0.5, MinRequests: 2, IntervalSeconds: 60, TimeoutSeconds: 60, MaxRequestsInHalf: 1,
	}

	r := gin.New()
	r.Use(CircuitBreakerMiddleware("test", cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	assert.Equal(t, http.StatusInternalServerError, do(r, "/x", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, "/x", nil).Code)

	w := do(r, "/x", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
