package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/metrics"
	"github.com/yeisme/fastlink/pkg/middleware"
)

// errOriginStatus 让熔断器把 origin 5xx 计为失败.
var errOriginStatus = errors.New("origin server error")

// forwardedHeaders 透传给 origin 的请求头.
var forwardedHeaders = []string{
	"Accept", "Accept-Language", "Range", "If-Range", "If-None-Match", "If-Modified-Since",
	"User-Agent", "Origin",
}

// Forwarder 把未命中的请求转发给 origin.
// 等待响应头的时间受 timeout 限制，超时后显式取消请求；正文读取受客户端 ctx 限制.
type Forwarder struct {
	client  *http.Client
	origin  *url.URL
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// ForwarderOption 转发器选项.
type ForwarderOption func(*Forwarder)

// WithHTTPClient 替换默认 http.Client.
func WithHTTPClient(c *http.Client) ForwarderOption {
	return func(f *Forwarder) { f.client = c }
}

// WithTimeout 覆盖配置中的转发超时.
func WithTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) { f.timeout = d }
}

// NewForwarder 创建转发器. 熔断配置未启用时不经过熔断器.
func NewForwarder(cfg configs.EdgeConfig, cb configs.CircuitBreakerConfig, opts ...ForwarderOption) (*Forwarder, error) {
	origin, err := url.Parse(cfg.OriginURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid origin url %q", cfg.OriginURL)
	}

	f := &Forwarder{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        256,
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
				DisableCompression:  true,
			},
			// 重定向原样交给客户端
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		origin:  origin,
		timeout: cfg.ForwardTimeoutDuration(),
	}

	if cb.Enabled {
		f.breaker = middleware.NewCircuitBreaker("edge-origin", cb)
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// target 拼出 origin 上的 URL.
func (f *Forwarder) target(path, rawQuery string) string {
	u := *f.origin
	u.Path = strings.TrimSuffix(f.origin.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = rawQuery

	return u.String()
}

// Forward 转发 in 到 origin. 返回的响应必须关闭 Body，关闭时释放请求上下文.
func (f *Forwarder) Forward(ctx context.Context, in *http.Request, requestID string) (*http.Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(reqCtx, in.Method, f.target(in.URL.Path, in.URL.RawQuery), nil)
	if err != nil {
		cancel()
		return nil, apperr.Wrap(apperr.KindInternal, err, "build origin request")
	}

	for _, h := range forwardedHeaders {
		if v := in.Header.Values(h); len(v) > 0 {
			req.Header[h] = v
		}
	}

	setForwardedFor(req.Header, in)

	if requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}

	otel.GetTextMapPropagator().Inject(reqCtx, propagation.HeaderCarrier(req.Header))

	timer := time.AfterFunc(f.timeout, cancel)
	start := time.Now()

	resp, err := f.do(req)

	timedOut := !timer.Stop()
	elapsed := time.Since(start).Seconds()

	switch {
	case timedOut:
		if resp != nil {
			resp.Body.Close()
		}

		cancel()
		metrics.EdgeOriginDuration.WithLabelValues("timeout").Observe(elapsed)

		return nil, apperr.Wrap(apperr.KindUpstreamTimeout, context.DeadlineExceeded, "origin timed out")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		cancel()
		metrics.EdgeOriginDuration.WithLabelValues("open").Observe(elapsed)

		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "origin circuit open")
	case err != nil:
		cancel()
		metrics.EdgeOriginDuration.WithLabelValues("error").Observe(elapsed)

		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "origin unreachable")
	}

	metrics.EdgeOriginDuration.WithLabelValues("ok").Observe(elapsed)

	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}

	return resp, nil
}

// do 经过熔断器执行请求. origin 5xx 计为失败但响应照常返回.
func (f *Forwarder) do(req *http.Request) (*http.Response, error) {
	if f.breaker == nil {
		return f.client.Do(req)
	}

	res, err := f.breaker.Execute(func() (any, error) {
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errOriginStatus
		}

		return resp, nil
	})

	resp, _ := res.(*http.Response)
	if errors.Is(err, errOriginStatus) {
		return resp, nil
	}

	return resp, err
}

// Ping 请求 origin 的 /health，不经过熔断器.
func (f *Forwarder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.target("/health", ""), nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("origin health status %d", resp.StatusCode)
	}

	return nil
}

func setForwardedFor(h http.Header, in *http.Request) {
	ip := in.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i > 0 {
		ip = ip[:i]
	}

	ip = strings.Trim(ip, "[]")

	if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
		ip = prior + ", " + ip
	}

	h.Set("X-Forwarded-For", ip)
	h.Set("X-Forwarded-Host", in.Host)

	proto := "http"
	if in.TLS != nil {
		proto = "https"
	}

	h.Set("X-Forwarded-Proto", proto)
}

type cancelBody struct {
	io.ReadCloser

	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()

	return err
}
