package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/fastlink/pkg/cache"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/access"
	"github.com/yeisme/fastlink/pkg/internal/handle"
	"github.com/yeisme/fastlink/pkg/internal/ingest"
	"github.com/yeisme/fastlink/pkg/internal/jobs"
	"github.com/yeisme/fastlink/pkg/internal/metacache"
	"github.com/yeisme/fastlink/pkg/internal/policy"
	"github.com/yeisme/fastlink/pkg/internal/router"
	"github.com/yeisme/fastlink/pkg/internal/service"
	"github.com/yeisme/fastlink/pkg/internal/storage"
	s3c "github.com/yeisme/fastlink/pkg/internal/storage/s3"
	"github.com/yeisme/fastlink/pkg/internal/stream"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/metrics"
	"github.com/yeisme/fastlink/pkg/queue"
	"github.com/yeisme/fastlink/pkg/scheduler"
)

// UploadStatePrefix 上传状态在 KV 中的键前缀.
const UploadStatePrefix = "upload:"

// Origin origin 进程：下载、信息查询、管理接口与上传队列消费者.
type Origin struct {
	Engine  *gin.Engine
	Service *service.Service
	Ingest  *ingest.Service

	cfg      *configs.AppConfig
	manager  *storage.Manager
	counter  *access.AsyncCounter
	mqRouter *message.Router
	sched    *scheduler.Scheduler
}

// NewOrigin 按配置初始化 origin 的全部组件.
func NewOrigin(ctx context.Context, cfg *configs.AppConfig) (*Origin, error) {
	var storageOpts []storage.Option
	if cfg.Metrics.Enabled {
		storageOpts = append(storageOpts, storage.WithRegisterer(metrics.Registerer(cfg.Metrics)))
	}

	mgr, err := storage.New(ctx, cfg, storage.PartOrigin, storageOpts...)
	if err != nil {
		return nil, err
	}

	o, err := buildOrigin(cfg, mgr)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	return o, nil
}

func buildOrigin(cfg *configs.AppConfig, mgr *storage.Manager) (*Origin, error) {
	producer := producerName("origin")
	pub := mgr.MQ.Publisher()
	records := service.NewRecordStore(mgr.DB.DB)

	var metaOpts []metacache.Option
	if cfg.Cache.Shared {
		metaOpts = append(metaOpts, metacache.WithShared(cache.NewCache(mgr.KV, cache.WithPrefix(cfg.Cache.KeyPrefix))))
	}

	meta := metacache.New(records, cfg.Cache, metaOpts...)

	var counterOpts []access.CounterOption
	if cfg.Events.Enabled && cfg.Events.Object.Accessed {
		counterOpts = append(counterOpts, access.WithFlushHook(accessedHook(pub, producer)))
	}

	counter := access.NewAsyncCounter(records, cfg.Access, counterOpts...)

	svc := service.New(service.Deps{
		Records:    records,
		Meta:       meta,
		Authorizer: access.NewAuthorizer(meta, counter),
		Engine:     stream.NewEngine(mgr.S3, cfg.Stream, stream.WithPermanentErrors(s3c.ErrObjectNotFound)),
		Policy:     policy.NewTable(cfg.Policy),
		Publisher:  pub,
		Events:     cfg.Events,
		Links:      service.Links{Origin: cfg.Server.PublicURL, Edge: cfg.Edge.PublicURL},
		Producer:   producer,
	})

	tracker := ingest.NewTracker(cache.NewCache(mgr.KV, cache.WithPrefix(UploadStatePrefix)), cfg.Ingest.StateTTLDuration())
	ing := ingest.New(cfg.Ingest, ingest.Deps{
		Publisher: pub,
		Tracker:   tracker,
		Stat:      mgr.S3,
		Records:   records,
		Meta:      meta,
		Producer:  producer,
	})

	mqRouter, err := mgr.MQ.NewRouter()
	if err != nil {
		_ = counter.Close(context.Background())
		return nil, err
	}

	ing.Register(mqRouter, mgr.MQ.Subscriber(), cfg.Ingest.Worker)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		_ = counter.Close(context.Background())
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(sched, jobs.Options{
		Sweeper:       ing,
		SweepCron:     cfg.Ingest.SweepCron,
		Flusher:       counter,
		FlushInterval: cfg.Access.FlushIntervalDuration(),
	}); err != nil {
		_ = counter.Close(context.Background())
		return nil, err
	}

	engine := gin.New()
	router.RegisterOrigin(engine, cfg, router.OriginDeps{
		Handlers:  handle.New(svc, ing),
		Manager:   mgr,
		Scheduler: sched,
	})

	return &Origin{
		Engine:   engine,
		Service:  svc,
		Ingest:   ing,
		cfg:      cfg,
		manager:  mgr,
		counter:  counter,
		mqRouter: mqRouter,
		sched:    sched,
	}, nil
}

// accessedHook 每次计数刷新后为每个对象发布一条 object.accessed.
func accessedHook(pub message.Publisher, producer string) access.FlushHook {
	return func(_ context.Context, counts map[string]int64, at time.Time) {
		for id, n := range counts {
			err := queue.PublishObjectAccessed(pub, queue.ObjectAccessedPayload{ObjectID: id, Count: n, At: at},
				queue.WithProducer(producer))
			if err != nil {
				log.Logger().Warn().Err(err).Str("object_id", id).Msg("publish object accessed failed")
			}
		}
	}
}

// Run 启动消费者、调度器与 HTTP 服务，ctx 取消后依次关闭.
// 消费者先于 HTTP 就绪，保证受理的上传一定有订阅者.
func (o *Origin) Run(ctx context.Context) error {
	defer o.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.mqRouter.Run(gctx)
	})

	select {
	case <-o.mqRouter.Running():
	case <-gctx.Done():
		return g.Wait()
	}

	o.sched.Start()

	srv := newHTTPServer(o.cfg.Server.Addr(), o.Engine, o.cfg.Server.GetTimeoutDuration())
	g.Go(func() error { return serve(gctx, srv, "origin") })

	if ms := metricsServer(o.cfg.Metrics); ms != nil {
		g.Go(func() error { return serve(gctx, ms, "metrics") })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (o *Origin) close() {
	l := log.Logger()

	if err := o.sched.Stop(); err != nil {
		l.Warn().Err(err).Msg("stop scheduler")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := o.counter.Close(ctx); err != nil {
		l.Warn().Err(err).Msg("final download count flush failed")
	}

	if err := o.mqRouter.Close(); err != nil {
		l.Warn().Err(err).Msg("close mq router")
	}

	if err := o.manager.Close(); err != nil {
		l.Warn().Err(err).Msg("close storage")
	}

	shutdownTracer()
}
