// Package app 提供 origin 与 edge 两个进程的初始化、运行与优雅退出.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/metrics"
	"github.com/yeisme/fastlink/pkg/tracing"
)

// shutdownTimeout 退出时等待进行中的请求的上限.
const shutdownTimeout = 15 * time.Second

// Bootstrap 加载配置并初始化日志、追踪与指标.
func Bootstrap(configPath string) (*configs.AppConfig, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	cfg := configs.GetConfig()

	log.Init()

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return cfg, nil
}

// newHTTPServer 不设置 WriteTimeout，大文件下载可能持续很久.
func newHTTPServer(addr string, h http.Handler, readHeader time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeader,
		IdleTimeout:       readHeader * 2,
	}
}

// serve 运行 srv 直到 ctx 取消，然后优雅关闭.
func serve(ctx context.Context, srv *http.Server, name string) error {
	errCh := make(chan error, 1)

	go func() {
		log.Logger().Info().Str("server", name).Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
			return
		}

		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s server: %w", name, err)
	}

	log.Logger().Info().Str("server", name).Msg("http server stopped")

	return nil
}

// metricsServer 指标与 pprof 挂在独立端口上，未启用时返回 nil.
func metricsServer(cfg configs.MetricsConfig) *http.Server {
	if !cfg.Enabled || cfg.Port == 0 {
		return nil
	}

	e := gin.New()
	e.Use(gin.Recovery())

	_ = metrics.StartMetricsServer(cfg, e)

	return newHTTPServer(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), e, 10*time.Second)
}

// producerName 事件头中的来源标识.
func producerName(role string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}

	return fmt.Sprintf("%s-%s@%s", configs.AppName, role, host)
}

func shutdownTracer() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tracing.ShutdownTracer(ctx); err != nil {
		log.Logger().Warn().Err(err).Msg("shutdown tracer")
	}
}
