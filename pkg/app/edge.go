package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/fastlink/pkg/cache"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/edge"
	"github.com/yeisme/fastlink/pkg/internal/policy"
	"github.com/yeisme/fastlink/pkg/internal/router"
	"github.com/yeisme/fastlink/pkg/internal/storage"
	"github.com/yeisme/fastlink/pkg/log"
)

// EdgeCachePrefix 边缘缓存在 KV 中的键前缀.
const EdgeCachePrefix = "edge:"

// Edge edge 进程：缓存代理.
type Edge struct {
	Engine *gin.Engine

	cfg     *configs.AppConfig
	manager *storage.Manager
	proxy   *edge.Proxy
}

// NewEdge 初始化 edge. 只需要 KV.
func NewEdge(ctx context.Context, cfg *configs.AppConfig) (*Edge, error) {
	mgr, err := storage.New(ctx, cfg, storage.PartEdge)
	if err != nil {
		return nil, err
	}

	fwd, err := edge.NewForwarder(cfg.Edge, cfg.CircuitBreaker)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	proxy := edge.NewProxy(cfg.Edge, cache.NewCache(mgr.KV, cache.WithPrefix(EdgeCachePrefix)), policy.NewTable(cfg.Policy), fwd)

	engine := gin.New()
	router.RegisterEdge(engine, cfg, proxy)

	return &Edge{Engine: engine, cfg: cfg, manager: mgr, proxy: proxy}, nil
}

// Run 运行 edge 直到 ctx 取消.
func (e *Edge) Run(ctx context.Context) error {
	defer e.close()

	g, gctx := errgroup.WithContext(ctx)

	srv := newHTTPServer(e.cfg.Edge.Addr(), e.Engine, e.cfg.Server.GetTimeoutDuration())
	g.Go(func() error { return serve(gctx, srv, "edge") })

	if ms := metricsServer(e.cfg.Metrics); ms != nil {
		g.Go(func() error { return serve(gctx, ms, "metrics") })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (e *Edge) close() {
	// 等待异步缓存写入结束再关闭 KV
	e.proxy.Wait()

	if err := e.manager.Close(); err != nil {
		log.Logger().Warn().Err(err).Msg("close storage")
	}

	shutdownTracer()
}
