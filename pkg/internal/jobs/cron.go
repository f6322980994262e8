// Package jobs 负责注册与实现业务定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/scheduler"
)

// Sweeper 把超时的 pending 上传判定为失败.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Flusher 把缓冲的下载计数写入数据库.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Options 需要注册的任务. 为空的依赖对应的任务不注册.
type Options struct {
	Sweeper   Sweeper
	SweepCron string

	Flusher       Flusher
	FlushInterval time.Duration
}

// RegisterCronJobs 注册定时任务：
//   - 按 SweepCron 扫描超时的 pending 上传
//   - 按 FlushInterval 兜底刷新下载计数，正常情况下计数器自身的定时器已经会刷新
func RegisterCronJobs(sched *scheduler.Scheduler, opts Options) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if opts.Sweeper != nil {
		if err := sched.AddCron(JobIngestSweep, opts.SweepCron, sweepJob(opts.Sweeper)); err != nil {
			return fmt.Errorf("register %s: %w", JobIngestSweep, err)
		}
	}

	if opts.Flusher != nil && opts.FlushInterval > 0 {
		// 计数器自身按 FlushInterval 刷新，这里只兜底
		if err := sched.AddInterval(JobAccessFlush, opts.FlushInterval*2, flushJob(opts.Flusher)); err != nil {
			return fmt.Errorf("register %s: %w", JobAccessFlush, err)
		}
	}

	return nil
}

func sweepJob(s Sweeper) scheduler.JobFunc {
	return func(ctx context.Context) error {
		n, err := s.Sweep(ctx)
		if err != nil {
			return err
		}

		if n > 0 {
			log.Logger().Info().Str("job", JobIngestSweep).Int("timed_out", n).Msg("pending uploads timed out")
		}

		return nil
	}
}

func flushJob(f Flusher) scheduler.JobFunc {
	return func(ctx context.Context) error {
		return f.Flush(ctx)
	}
}
