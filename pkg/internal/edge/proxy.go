// Package edge 是边缘缓存代理：按扩展名分类，命中直接返回，未命中限时转发 origin，
// 成功的完整响应异步写回缓存.
//
// edge 没有来自 origin 的主动失效通道，删除在一个 TTL 窗口内收敛.
package edge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/cache"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/policy"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/metrics"
	"github.com/yeisme/fastlink/pkg/middleware"
)

const (
	cacheWriteTimeout = 5 * time.Second
	healthTimeout     = 3 * time.Second
	errorBodyLimit    = 8 << 10
)

// hopHeaders 逐跳头，不转给客户端.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Proxy 边缘缓存代理. 请求之间只共享缓存存储.
type Proxy struct {
	cfg    configs.EdgeConfig
	cache  *cache.Cache
	table  *policy.Table
	fwd    *Forwarder
	strip  []string
	logger zerolog.Logger
	writes sync.WaitGroup
}

// NewProxy 创建代理.
func NewProxy(cfg configs.EdgeConfig, store *cache.Cache, table *policy.Table, fwd *Forwarder) *Proxy {
	strip := make([]string, 0, len(cfg.StripHeaders)+len(hopHeaders))
	for _, h := range cfg.StripHeaders {
		strip = append(strip, http.CanonicalHeaderKey(h))
	}

	strip = append(strip, hopHeaders...)

	return &Proxy{
		cfg:    cfg,
		cache:  store,
		table:  table,
		fwd:    fwd,
		strip:  strip,
		logger: log.Component("edge"),
	}
}

// Mount 注册 edge 路由.
func (p *Proxy) Mount(r *gin.Engine) {
	r.GET("/health", p.Health)
	r.Any(strings.TrimSuffix(p.cfg.PathPrefix, "/")+"/*path", p.Handle)
	r.NoRoute(p.Handle)
}

// Wait 等待所有异步缓存写入结束.
func (p *Proxy) Wait() {
	p.writes.Wait()
}

// Handle 单个请求的处理流程：预检 -> 路径过滤 -> 分类 -> 查缓存 -> 转发 -> 回写.
func (p *Proxy) Handle(c *gin.Context) {
	start := time.Now()
	req := c.Request

	if req.Method == http.MethodOptions {
		p.preflight(c)
		return
	}

	if !strings.HasPrefix(req.URL.Path, p.cfg.PathPrefix) {
		apperr.Write(c, apperr.ErrNotFound)
		return
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		c.Header("Allow", "GET, HEAD, OPTIONS")
		apperr.Abort(c, http.StatusMethodNotAllowed, apperr.StatusMessage(http.StatusMethodNotAllowed))

		return
	}

	rule := p.table.Lookup(req.URL.Path)
	cacheable := rule.Cacheable && req.Header.Get("Range") == ""

	if !cacheable {
		p.forward(c, start, CacheBypass, "", rule)
		return
	}

	key := Key(p.cfg.CacheGeneration, p.table.Version(), req.URL.Path, req.URL.RawQuery)

	entry, err := cache.Get[Entry](req.Context(), p.cache, key)
	if err == nil {
		p.serveHit(c, start, &entry)
		return
	}

	if !errors.Is(err, cache.ErrMiss) {
		p.logger.Warn().Err(err).Msg("edge cache lookup failed")
	}

	p.forward(c, start, CacheMiss, key, rule)
}

func (p *Proxy) preflight(c *gin.Context) {
	h := c.Writer.Header()

	if origin := allowedOrigin(p.cfg.AllowOrigins, c.GetHeader("Origin")); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)

		if origin != "*" {
			h.Add("Vary", "Origin")
		}
	}

	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Range, If-None-Match, If-Modified-Since, Content-Type")
	h.Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, ETag, X-Cache")
	h.Set("Access-Control-Max-Age", "86400")

	c.AbortWithStatus(http.StatusNoContent)
}

func allowedOrigin(allow []string, origin string) string {
	for _, o := range allow {
		if o == "*" {
			return "*"
		}

		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}

	return ""
}

func (p *Proxy) serveHit(c *gin.Context, start time.Time, e *Entry) {
	metrics.EdgeRequests.WithLabelValues(CacheHit).Inc()

	h := c.Writer.Header()
	for k, v := range e.Header {
		h[k] = v
	}

	if e.ETag != "" {
		h.Set("ETag", e.ETag)
	}

	h.Set("Age", fmt.Sprintf("%d", max(e.Age(time.Now()), 0)))
	p.debugHeaders(h, CacheHit, start)

	if etagMatches(c.GetHeader("If-None-Match"), e.ETag) {
		h.Del("Content-Length")
		c.Status(http.StatusNotModified)
		c.Writer.WriteHeaderNow()
		c.Abort()

		return
	}

	h.Set("Content-Length", fmt.Sprintf("%d", len(e.Body)))
	c.Status(e.Status)

	if c.Request.Method == http.MethodHead {
		c.Writer.WriteHeaderNow()
	} else {
		_, _ = c.Writer.Write(e.Body)
	}

	c.Abort()
}

func (p *Proxy) forward(c *gin.Context, start time.Time, status, key string, rule policy.Rule) {
	metrics.EdgeRequests.WithLabelValues(status).Inc()

	resp, err := p.fwd.Forward(c.Request.Context(), c.Request, middleware.GetRequestID(c))
	if err != nil {
		p.logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("origin forward failed")
		p.debugHeaders(c.Writer.Header(), status, start)
		apperr.Write(c, err)

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		p.originError(c, start, status, resp)
		return
	}

	h := c.Writer.Header()
	for k, v := range resp.Header {
		h[k] = v
	}

	for _, k := range p.strip {
		h.Del(k)
	}

	var stored http.Header

	capture := key != "" && c.Request.Method == http.MethodGet && resp.StatusCode == http.StatusOK &&
		(resp.ContentLength < 0 || resp.ContentLength <= int64(p.cfg.MaxBodyBytes))

	ttl, ok := storableTTL(resp.Header)
	ttl = minTTL(rule.TTL, ttl)

	if !ok || ttl <= 0 {
		capture = false
	}

	if capture {
		stored = h.Clone()
		stored.Del(middleware.RequestIDHeader)
		stored.Del("Date")
	}

	p.debugHeaders(h, status, start)
	c.Status(resp.StatusCode)

	if c.Request.Method == http.MethodHead || resp.StatusCode == http.StatusNotModified {
		c.Writer.WriteHeaderNow()
		c.Abort()

		return
	}

	var buf *captureBuffer

	src := io.Reader(resp.Body)
	if capture {
		buf = &captureBuffer{max: p.cfg.MaxBodyBytes}
		src = io.TeeReader(resp.Body, buf)
	}

	n, err := io.Copy(c.Writer, src)
	if err != nil {
		p.logger.Debug().Err(err).Str("path", c.Request.URL.Path).Int64("written", n).Msg("edge response aborted")
		c.Abort()

		return
	}

	c.Abort()

	if buf == nil {
		return
	}

	if buf.overflow || (resp.ContentLength >= 0 && n != resp.ContentLength) {
		metrics.EdgeCacheWrites.WithLabelValues("skipped").Inc()
		return
	}

	entry := Entry{
		Status:   resp.StatusCode,
		Header:   stored,
		Body:     buf.buf.Bytes(),
		ETag:     stored.Get("ETag"),
		Class:    rule.Class.String(),
		StoredAt: time.Now().UnixNano(),
	}

	p.store(c.Request.Context(), key, entry, ttl)
}

// store 异步写缓存，不阻塞当前响应，也不受客户端断开影响.
func (p *Proxy) store(ctx context.Context, key string, e Entry, ttl time.Duration) {
	ctx = context.WithoutCancel(ctx)

	p.writes.Add(1)

	go func() {
		defer p.writes.Done()

		ctx, cancel := context.WithTimeout(ctx, cacheWriteTimeout)
		defer cancel()

		if err := cache.Set(ctx, p.cache, key, e, ttl); err != nil {
			metrics.EdgeCacheWrites.WithLabelValues("error").Inc()
			p.logger.Warn().Err(err).Msg("edge cache write failed")

			return
		}

		metrics.EdgeCacheWrites.WithLabelValues("stored").Inc()
	}()
}

// originError 把 origin 的 4xx/5xx 改写成统一错误体，保留原状态码.
func (p *Proxy) originError(c *gin.Context, start time.Time, status string, resp *http.Response) {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	msg := apperr.StatusMessage(resp.StatusCode)

	var env apperr.Envelope
	if err := sonic.Unmarshal(body, &env); err == nil && env.Error && env.Message != "" && resp.StatusCode < 500 {
		msg = env.Message
	}

	h := c.Writer.Header()
	for _, k := range []string{"Content-Range", "Retry-After", "WWW-Authenticate"} {
		if v := resp.Header.Get(k); v != "" {
			h.Set(k, v)
		}
	}

	p.debugHeaders(h, status, start)
	apperr.Abort(c, resp.StatusCode, msg)
}

func (p *Proxy) debugHeaders(h http.Header, status string, start time.Time) {
	h.Set("X-Cache", status)
	h.Set("X-Cache-Generation", p.cfg.CacheGeneration)
	h.Set("X-Response-Time", fmt.Sprintf("%dms", time.Since(start).Milliseconds()))
}

// Health 报告缓存存储与 origin 的状态. origin 不可用时 edge 仍返回 200 并标记 degraded.
func (p *Proxy) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	components := gin.H{"cache": "ok", "origin": "ok"}
	status := "ok"

	if _, err := p.cache.Exists(ctx, "health:probe"); err != nil {
		components["cache"] = err.Error()
		status = "degraded"
	}

	if err := p.fwd.Ping(ctx); err != nil {
		components["origin"] = "unreachable"
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"generation": p.cfg.CacheGeneration,
		"policy":     p.table.Version(),
		"components": components,
	})
}

func minTTL(a, b time.Duration) time.Duration {
	if b > 0 && b < a {
		return b
	}

	return a
}

// captureBuffer 捕获响应体，超过上限后放弃.
type captureBuffer struct {
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (w *captureBuffer) Write(b []byte) (int, error) {
	if w.overflow {
		return len(b), nil
	}

	if w.max > 0 && w.buf.Len()+len(b) > w.max {
		w.overflow = true
		w.buf.Reset()

		return len(b), nil
	}

	return w.buf.Write(b)
}
