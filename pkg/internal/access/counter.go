package access

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/metrics"
)

// CountStore 批量累加下载次数.
type CountStore interface {
	IncrementDownloads(ctx context.Context, counts map[string]int64, at time.Time) error
}

// FlushHook 每次成功刷新后调用.
type FlushHook func(ctx context.Context, counts map[string]int64, at time.Time)

// AsyncCounter 合并下载计数并定期批量写库.
// Increment 在缓冲满时直接丢弃，不会阻塞下载路径；进程崩溃时未刷新的计数丢失.
type AsyncCounter struct {
	store    CountStore
	ch       chan string
	flushReq chan chan error
	stop     chan struct{}
	done     chan struct{}
	closed   atomic.Bool
	once     sync.Once

	interval time.Duration
	batch    int
	timeout  time.Duration
	hooks    []FlushHook
	logger   zerolog.Logger
}

// CounterOption 计数器选项.
type CounterOption func(*AsyncCounter)

// WithFlushHook 注册刷新回调.
func WithFlushHook(h FlushHook) CounterOption {
	return func(c *AsyncCounter) { c.hooks = append(c.hooks, h) }
}

// NewAsyncCounter 创建并启动计数器.
func NewAsyncCounter(store CountStore, cfg configs.AccessConfig, opts ...CounterOption) *AsyncCounter {
	c := &AsyncCounter{
		store:    store,
		ch:       make(chan string, max(cfg.QueueSize, 1)),
		flushReq: make(chan chan error),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		interval: cfg.FlushIntervalDuration(),
		batch:    max(cfg.FlushBatch, 1),
		timeout:  cfg.FlushTimeoutDuration(),
		logger:   log.Component("access"),
	}

	if c.interval <= 0 {
		c.interval = time.Duration(configs.DefaultAccessFlushInterval) * time.Second
	}

	if c.timeout <= 0 {
		c.timeout = time.Duration(configs.DefaultAccessFlushTimeout) * time.Second
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.run()

	return c
}

// Increment 记录一次下载.
func (c *AsyncCounter) Increment(objectID string) {
	if c.closed.Load() {
		metrics.DownloadIncrements.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case c.ch <- objectID:
		metrics.DownloadIncrements.WithLabelValues("queued").Inc()
	default:
		metrics.DownloadIncrements.WithLabelValues("dropped").Inc()
	}
}

// Flush 立即刷新已合并的计数.
func (c *AsyncCounter) Flush(ctx context.Context) error {
	reply := make(chan error, 1)

	select {
	case c.flushReq <- reply:
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止接收并刷新剩余计数.
func (c *AsyncCounter) Close(ctx context.Context) error {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.stop)
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *AsyncCounter) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	pending := make(map[string]int64)

	for {
		select {
		case id := <-c.ch:
			pending[id]++
			if len(pending) >= c.batch {
				pending = c.flush(pending)
			}
		case <-ticker.C:
			pending = c.flush(pending)
		case reply := <-c.flushReq:
			pending = c.drain(pending)
			reply <- c.flushErr(pending)
			pending = make(map[string]int64)
		case <-c.stop:
			pending = c.drain(pending)
			c.flush(pending)

			return
		}
	}
}

// drain 取走缓冲中已有的计数.
func (c *AsyncCounter) drain(pending map[string]int64) map[string]int64 {
	for {
		select {
		case id := <-c.ch:
			pending[id]++
		default:
			return pending
		}
	}
}

func (c *AsyncCounter) flush(pending map[string]int64) map[string]int64 {
	_ = c.flushErr(pending)
	return make(map[string]int64)
}

func (c *AsyncCounter) flushErr(pending map[string]int64) error {
	if len(pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	now := time.Now()

	var total int64
	for _, n := range pending {
		total += n
	}

	if err := c.store.IncrementDownloads(ctx, pending, now); err != nil {
		c.logger.Warn().Err(err).Int("objects", len(pending)).Int64("downloads", total).
			Msg("download counter flush failed, increments lost")
		metrics.DownloadIncrements.WithLabelValues("lost").Add(float64(total))

		return err
	}

	metrics.DownloadIncrements.WithLabelValues("flushed").Add(float64(total))

	for _, h := range c.hooks {
		h(ctx, pending, now)
	}

	return nil
}
