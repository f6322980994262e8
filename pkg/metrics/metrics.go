// Package metrics 提供 Prometheus 指标.
// 领域指标在包初始化时创建，调用方直接使用；InitMetrics 负责注册，未启用时指标照常计数但不暴露.
//
// Example:
//
//	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
//		log.Fatal(err)
//	}
//
//	metrics.MetaCacheLookups.WithLabelValues(metrics.ResultHit).Inc()
//	metrics.BytesStreamed.Add(float64(n))
package metrics

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" // 注册 pprof 端点到 http.DefaultServeMux
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/fastlink/pkg/configs"
)

// Namespace 指标名前缀.
const Namespace = configs.AppName

// 常用标签值.
const (
	ResultHit    = "hit"
	ResultHitL2  = "hit_l2"
	ResultMiss   = "miss"
	ResultOK     = "ok"
	ResultRetry  = "retry"
	ResultError  = "error"
	ResultShared = "shared"
)

var (
	// RequestCounter HTTP 请求计数.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "route", "status"},
	)

	// RequestDuration HTTP 请求耗时.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "route"},
	)

	// ActiveConnections 正在处理的请求数.
	ActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
		[]string{"service"},
	)

	// MetaCacheLookups 元数据缓存查找结果：hit/hit_l2/miss.
	MetaCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "metacache",
			Name:      "lookups_total",
			Help:      "Metadata cache lookups by result",
		},
		[]string{"result"},
	)

	// MetaCacheFetches 对持久化存储的实际查询次数.
	MetaCacheFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "metacache",
			Name:      "store_fetches_total",
			Help:      "Backing store fetches issued by the metadata cache",
		},
		[]string{"result"},
	)

	// MetaCacheShared 通过 single-flight 共享结果的调用数.
	MetaCacheShared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "metacache",
			Name:      "singleflight_shared_total",
			Help:      "Callers that received a shared single-flight result",
		},
	)

	// ChunkFetches 分块读取结果：ok/retry/error.
	ChunkFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "stream",
			Name:      "chunk_fetches_total",
			Help:      "Object store chunk fetch attempts by result",
		},
		[]string{"result"},
	)

	// BytesStreamed 已写给客户端的字节数.
	BytesStreamed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Bytes written to download clients",
		},
	)

	// StreamAborts 流中断原因：client/upstream.
	StreamAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "stream",
			Name:      "aborts_total",
			Help:      "Streams aborted after headers were sent",
		},
		[]string{"reason"},
	)

	// EdgeRequests edge 缓存结果：HIT/MISS/BYPASS.
	EdgeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "edge",
			Name:      "requests_total",
			Help:      "Edge requests by cache status",
		},
		[]string{"cache"},
	)

	// EdgeOriginDuration edge 转发到 origin 的耗时（到响应头）.
	EdgeOriginDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "edge",
			Name:      "origin_duration_seconds",
			Help:      "Time until origin response headers",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	// EdgeCacheWrites edge 回写结果：stored/skipped/error.
	EdgeCacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "edge",
			Name:      "cache_writes_total",
			Help:      "Edge cache write-back outcomes",
		},
		[]string{"result"},
	)

	// DownloadIncrements 下载计数：queued/dropped/flushed.
	DownloadIncrements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "access",
			Name:      "download_increments_total",
			Help:      "Download counter increments by outcome",
		},
		[]string{"outcome"},
	)

	// AccessDecisions 授权结果.
	AccessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Access authorizer decisions",
		},
		[]string{"decision"},
	)

	// IngestEvents 上传状态迁移.
	IngestEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Ingest state transitions",
		},
		[]string{"state"},
	)

	// RateLimited 被限流的请求.
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"service"},
	)

	collectorsAll = []prometheus.Collector{
		RequestCounter, RequestDuration, ActiveConnections,
		MetaCacheLookups, MetaCacheFetches, MetaCacheShared,
		ChunkFetches, BytesStreamed, StreamAborts,
		EdgeRequests, EdgeOriginDuration, EdgeCacheWrites,
		DownloadIncrements, AccessDecisions, IngestEvents, RateLimited,
	}

	// registry Prometheus 注册表.
	registry = prometheus.NewRegistry()

	initOnce sync.Once
)

// InitMetrics 注册指标. 重复调用只生效一次.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)

		if config.RuntimeMetrics {
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}

		for _, c := range collectorsAll {
			if e := reg.Register(c); e != nil {
				err = fmt.Errorf("register metric: %w", e)
				return
			}
		}
	})

	return err
}

// StartMetricsServer 在 debug 引擎上挂载指标与 pprof.
func StartMetricsServer(config configs.MetricsConfig, debugEngine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	debugEngine.GET(config.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	if config.Pprof {
		debugEngine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}

// GetRegistry 获取 Prometheus 注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Registerer 返回带固定标签的注册器，供 DB/MQ 组件注册自己的指标.
func Registerer(config configs.MetricsConfig) prometheus.Registerer {
	return prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)
}
