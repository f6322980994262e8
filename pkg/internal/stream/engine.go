// Package stream 按固定大小的分块从对象存储拉取数据并顺序写给客户端.
// 内存占用约为 (prefetch+1) 个分块，与对象大小无关.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/metrics"
)

// Fetcher 读取对象的 [start, end] 闭区间，每次调用都可能失败.
type Fetcher interface {
	FetchRange(ctx context.Context, locator string, start, end int64) ([]byte, error)
}

// ErrCommitted 响应头已经写出后流中断. 调用方不能再写错误体.
var ErrCommitted = errors.New("stream aborted after response was committed")

// Option 引擎选项.
type Option func(*Engine)

// WithPermanentErrors 遇到这些错误不再重试，例如对象已不存在.
func WithPermanentErrors(errs ...error) Option {
	return func(e *Engine) {
		e.permanent = append(e.permanent, errs...)
	}
}

// Engine 分块流式读取引擎，可并发使用.
type Engine struct {
	fetcher        Fetcher
	chunkSize      int64
	prefetch       int
	maxAttempts    uint
	backoffInitial time.Duration
	backoffMax     time.Duration
	fetchTimeout   time.Duration
	permanent      []error
	logger         zerolog.Logger
}

// NewEngine 创建引擎.
func NewEngine(fetcher Fetcher, cfg configs.StreamConfig, opts ...Option) *Engine {
	e := &Engine{
		fetcher:        fetcher,
		chunkSize:      int64(cfg.ChunkSize),
		prefetch:       cfg.Prefetch,
		maxAttempts:    uint(max(cfg.MaxAttempts, 1)),
		backoffInitial: cfg.BackoffInitialDuration(),
		backoffMax:     cfg.BackoffMaxDuration(),
		fetchTimeout:   cfg.FetchTimeoutDuration(),
		logger:         log.Component("stream"),
	}

	if e.chunkSize <= 0 {
		e.chunkSize = configs.DefaultStreamChunkSize
	}

	if e.prefetch < 0 {
		e.prefetch = 0
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ChunkSize 返回分块大小.
func (e *Engine) ChunkSize() int64 { return e.chunkSize }

// Body 一次区间读取. 第一个分块在 Open 时已经拉取.
type Body struct {
	engine  *Engine
	ctx     context.Context
	locator string
	rng     Range
	first   []byte
}

// Open 拉取第一个分块. 返回错误时尚未向客户端写出任何内容，调用方可以返回错误体.
func (e *Engine) Open(ctx context.Context, locator string, rng Range) (*Body, error) {
	b := &Body{engine: e, ctx: ctx, locator: locator, rng: rng}

	if rng.Length() <= 0 {
		return b, nil
	}

	end := min(rng.Start+e.chunkSize-1, rng.End)

	data, err := e.fetchChunk(ctx, locator, rng.Start, end)
	if err != nil {
		return nil, err
	}

	b.first = data

	return b, nil
}

// Range 返回读取区间.
func (b *Body) Range() Range { return b.rng }

// WriteTo 按顺序写出所有分块. 下一个分块的拉取与当前分块的写出并行.
// 写失败（客户端断开）会取消仍在进行的拉取，且不再发起新的拉取.
func (b *Body) WriteTo(w io.Writer) (int64, error) {
	if b.rng.Length() <= 0 {
		return 0, nil
	}

	flusher, _ := w.(http.Flusher)

	var written int64

	write := func(p []byte) error {
		n, err := w.Write(p)
		written += int64(n)
		metrics.BytesStreamed.Add(float64(n))

		if err != nil {
			return fmt.Errorf("write to client: %w", err)
		}

		if flusher != nil {
			flusher.Flush()
		}

		return nil
	}

	if err := write(b.first); err != nil {
		return written, b.aborted(err, written)
	}

	b.first = nil

	next := b.rng.Start + int64(written)
	if next > b.rng.End {
		return written, nil
	}

	g, ctx := errgroup.WithContext(b.ctx)
	chunks := make(chan []byte, b.engine.prefetch)

	g.Go(func() error {
		defer close(chunks)

		for start := next; start <= b.rng.End; start += b.engine.chunkSize {
			end := min(start+b.engine.chunkSize-1, b.rng.End)

			data, err := b.engine.fetchChunk(ctx, b.locator, start, end)
			if err != nil {
				return err
			}

			select {
			case chunks <- data:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	g.Go(func() error {
		for data := range chunks {
			if err := write(data); err != nil {
				return err
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return written, b.aborted(err, written)
	}

	return written, nil
}

func (b *Body) aborted(err error, written int64) error {
	reason := "upstream"
	if b.ctx.Err() != nil || apperr.KindOf(err) != apperr.KindUpstreamUnavailable {
		reason = "client"
	}

	metrics.StreamAborts.WithLabelValues(reason).Inc()

	ev := b.engine.logger.Warn()
	if reason == "client" {
		ev = b.engine.logger.Debug()
	}

	ev.Err(err).Str("locator", b.locator).Int64("written", written).Int64("want", b.rng.Length()).
		Msg("stream aborted")

	return fmt.Errorf("%w: %w", ErrCommitted, err)
}

// fetchChunk 拉取一个分块，失败时按指数退避重试. 调用方 ctx 取消时立即返回.
func (e *Engine) fetchChunk(ctx context.Context, locator string, start, end int64) ([]byte, error) {
	want := end - start + 1

	op := func() ([]byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()

		data, err := e.fetcher.FetchRange(attemptCtx, locator, start, end)
		if err == nil && int64(len(data)) != want {
			err = fmt.Errorf("short chunk: got %d of %d bytes", len(data), want)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}

			for _, p := range e.permanent {
				if errors.Is(err, p) {
					return nil, backoff.Permanent(err)
				}
			}

			metrics.ChunkFetches.WithLabelValues(metrics.ResultRetry).Inc()

			return nil, err
		}

		metrics.ChunkFetches.WithLabelValues(metrics.ResultOK).Inc()

		return data, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.backoffInitial
	bo.MaxInterval = e.backoffMax

	data, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(e.maxAttempts),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		metrics.ChunkFetches.WithLabelValues(metrics.ResultError).Inc()
		e.logger.Error().Err(err).Str("locator", locator).Int64("start", start).Int64("end", end).
			Msg("chunk fetch failed after retries")

		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "object store unavailable")
	}

	return data, nil
}
