package edge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/cache"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/policy"
	"github.com/yeisme/fastlink/pkg/internal/storage/kv"
)

type fakeOrigin struct {
	srv   *httptest.Server
	calls atomic.Int64
	delay time.Duration
	// gone 之后所有下载返回 410
	gone atomic.Bool
}

func newFakeOrigin(t *testing.T) *fakeOrigin {
	t.Helper()

	o := &fakeOrigin{}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}

		o.calls.Add(1)

		if o.delay > 0 {
			time.Sleep(o.delay)
		}

		switch {
		case o.gone.Load():
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write(apperr.NewEnvelope(http.StatusGone, "File has been deleted").Body())
		case strings.Contains(r.URL.Path, "missing"):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write(apperr.NewEnvelope(http.StatusNotFound, "File not found").Body())
		case strings.Contains(r.URL.Path, "broken"):
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("panic: dial tcp 10.0.0.7:9000: connection refused"))
		case r.Header.Get("Range") != "":
			w.Header().Set("Content-Range", "bytes 0-3/11")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte("hell"))
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("ETag", `"abc123"`)
			if strings.Contains(r.URL.Path, "short") {
				w.Header().Set("Cache-Control", "public, max-age=1")
			} else {
				w.Header().Set("Cache-Control", "public, max-age=3600")
			}
			w.Header().Set("Set-Cookie", "session=secret")
			w.Header().Set("Server", "origin/1.0")
			_, _ = w.Write([]byte("hello world"))
		}
	}))
	t.Cleanup(o.srv.Close)

	return o
}

func newTestProxy(t *testing.T, originURL string, opts ...ForwarderOption) (*Proxy, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := configs.EdgeConfig{
		OriginURL:       originURL,
		PathPrefix:      "/dl/",
		ForwardTimeout:  10,
		CacheGeneration: "v1",
		MaxBodyBytes:    1 << 20,
		StripHeaders:    []string{"Set-Cookie", "Server"},
		AllowOrigins:    []string{"*"},
	}

	mem, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	fwd, err := NewForwarder(cfg, configs.CircuitBreakerConfig{}, opts...)
	require.NoError(t, err)

	table := policy.NewTable(configs.PolicyConfig{Version: "p1", MediaTTL: 3600, DefaultTTL: 60})
	p := NewProxy(cfg, cache.NewCache(mem, cache.WithPrefix("edge:")), table, fwd)

	r := gin.New()
	p.Mount(r)

	return p, r
}

func do(r http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestCacheHitBypassesOrigin(t *testing.T) {
	o := newFakeOrigin(t)
	p, r := newTestProxy(t, o.srv.URL)

	first := do(r, http.MethodGet, "/dl/abc/photo.jpg?code=xyz", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, CacheMiss, first.Header().Get("X-Cache"))
	assert.Equal(t, "hello world", first.Body.String())
	assert.Empty(t, first.Header().Get("Set-Cookie"))
	assert.Empty(t, first.Header().Get("Server"))
	assert.Equal(t, "v1", first.Header().Get("X-Cache-Generation"))
	assert.NotEmpty(t, first.Header().Get("X-Response-Time"))

	p.Wait()

	second := do(r, http.MethodGet, "/dl/abc/photo.jpg?code=xyz", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, CacheHit, second.Header().Get("X-Cache"))
	assert.Equal(t, "hello world", second.Body.String())
	assert.Equal(t, `"abc123"`, second.Header().Get("ETag"))
	assert.Equal(t, int64(1), o.calls.Load())

	// 查询串不同是另一个键
	third := do(r, http.MethodGet, "/dl/abc/photo.jpg?code=other", nil)
	assert.Equal(t, CacheMiss, third.Header().Get("X-Cache"))
	assert.Equal(t, int64(2), o.calls.Load())
}

func TestConditionalHit(t *testing.T) {
	o := newFakeOrigin(t)
	p, r := newTestProxy(t, o.srv.URL)

	do(r, http.MethodGet, "/dl/abc/photo.jpg?code=xyz", nil)
	p.Wait()

	w := do(r, http.MethodGet, "/dl/abc/photo.jpg?code=xyz", map[string]string{"If-None-Match": `W/"abc123"`})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Zero(t, w.Body.Len())
	assert.Equal(t, int64(1), o.calls.Load())

	head := do(r, http.MethodHead, "/dl/abc/photo.jpg?code=xyz", nil)
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Equal(t, CacheHit, head.Header().Get("X-Cache"))
	assert.Equal(t, "11", head.Header().Get("Content-Length"))
	assert.Zero(t, head.Body.Len())
}

func TestRangeAndNonCacheableBypass(t *testing.T) {
	o := newFakeOrigin(t)
	p, r := newTestProxy(t, o.srv.URL)

	for range 2 {
		w := do(r, http.MethodGet, "/dl/abc/clip.mp4?code=xyz", map[string]string{"Range": "bytes=0-3"})
		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, CacheBypass, w.Header().Get("X-Cache"))
		assert.Equal(t, "bytes 0-3/11", w.Header().Get("Content-Range"))
	}

	for range 2 {
		w := do(r, http.MethodGet, "/dl/abc/app.js?code=xyz", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, CacheBypass, w.Header().Get("X-Cache"))
	}

	p.Wait()
	assert.Equal(t, int64(4), o.calls.Load())
}

func TestPathFilterAndPreflight(t *testing.T) {
	o := newFakeOrigin(t)
	_, r := newTestProxy(t, o.srv.URL)

	w := do(r, http.MethodGet, "/admin/api/files", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var env apperr.Envelope
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Error)
	assert.Equal(t, http.StatusNotFound, env.Code)

	pre := do(r, http.MethodOptions, "/dl/abc/photo.jpg", map[string]string{"Origin": "https://example.com"})
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "*", pre.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, pre.Header().Get("Access-Control-Allow-Headers"), "Range")

	assert.Zero(t, o.calls.Load())
}

func TestOriginErrorsAreEnveloped(t *testing.T) {
	o := newFakeOrigin(t)
	p, r := newTestProxy(t, o.srv.URL)

	nf := do(r, http.MethodGet, "/dl/missing/photo.jpg?code=x", nil)
	assert.Equal(t, http.StatusNotFound, nf.Code)

	broken := do(r, http.MethodGet, "/dl/broken/photo.jpg?code=x", nil)
	assert.Equal(t, http.StatusInternalServerError, broken.Code)
	assert.NotContains(t, broken.Body.String(), "10.0.0.7")

	var env apperr.Envelope
	require.NoError(t, sonic.Unmarshal(broken.Body.Bytes(), &env))
	assert.Equal(t, http.StatusInternalServerError, env.Code)
	assert.NotEmpty(t, env.Timestamp)

	p.Wait()

	// 错误响应不进缓存
	do(r, http.MethodGet, "/dl/missing/photo.jpg?code=x", nil)
	assert.Equal(t, int64(3), o.calls.Load())
}

func TestDeletionConvergesWithinTTL(t *testing.T) {
	o := newFakeOrigin(t)
	p, r := newTestProxy(t, o.srv.URL)

	const target = "/dl/short/photo.jpg?code=xyz"

	first := do(r, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, first.Code)
	p.Wait()

	o.gone.Store(true)

	cached := do(r, http.MethodGet, target, nil)
	assert.Equal(t, CacheHit, cached.Header().Get("X-Cache"))
	assert.Equal(t, http.StatusOK, cached.Code)
	assert.Equal(t, int64(1), o.calls.Load())

	time.Sleep(1100 * time.Millisecond)

	after := do(r, http.MethodGet, target, nil)
	assert.Equal(t, http.StatusGone, after.Code)
	assert.Equal(t, CacheMiss, after.Header().Get("X-Cache"))
	assert.Equal(t, int64(2), o.calls.Load())

	var env apperr.Envelope
	require.NoError(t, sonic.Unmarshal(after.Body.Bytes(), &env))
	assert.True(t, env.Error)
	assert.Equal(t, http.StatusGone, env.Code)
	assert.Equal(t, "File has been deleted", env.Message)

	p.Wait()

	// 410 不写缓存，再次请求仍回源
	do(r, http.MethodGet, target, nil)
	assert.Equal(t, int64(3), o.calls.Load())
}

func TestForwardTimeout(t *testing.T) {
	o := newFakeOrigin(t)
	o.delay = 500 * time.Millisecond

	_, r := newTestProxy(t, o.srv.URL, WithTimeout(50*time.Millisecond))

	start := time.Now()
	w := do(r, http.MethodGet, "/dl/abc/photo.jpg?code=xyz", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestOriginDown(t *testing.T) {
	o := newFakeOrigin(t)
	url := o.srv.URL
	o.srv.Close()

	_, r := newTestProxy(t, url)

	w := do(r, http.MethodGet, "/dl/abc/photo.jpg?code=xyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	health := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, health.Body.String(), "degraded")
}

func TestKeyIncludesGeneration(t *testing.T) {
	a := Key("v1", "p1", "/dl/x/a.jpg", "code=1")
	b := Key("v2", "p1", "/dl/x/a.jpg", "code=1")
	c := Key("v1", "p2", "/dl/x/a.jpg", "code=1")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Key("v1", "p1", "/dl/x/a.jpg", "code=1"))
}

func TestStorableTTL(t *testing.T) {
	cases := []struct {
		cc   string
		ttl  time.Duration
		want bool
	}{
		{"", 0, true},
		{"no-store", 0, false},
		{"private, max-age=60", 0, false},
		{"public, max-age=120", 120 * time.Second, true},
		{"max-age=0", 0, false},
	}

	for _, tc := range cases {
		h := http.Header{}
		if tc.cc != "" {
			h.Set("Cache-Control", tc.cc)
		}

		ttl, ok := storableTTL(h)
		assert.Equal(t, tc.want, ok, fmt.Sprintf("cache-control %q", tc.cc))
		assert.Equal(t, tc.ttl, ttl, tc.cc)
	}
}
