// Package metacache 是 origin 的对象元数据缓存.
// 一级缓存为进程内带 TTL 的 LRU，可选叠加基于 KV 的共享二级缓存.
// 同一 object id 的并发未命中通过 singleflight 合并为一次持久化查询.
package metacache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/cache"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/model"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/metrics"
)

// defaultFetchTimeout 单次持久化查询的上限，与调用方的 ctx 无关.
const defaultFetchTimeout = 5 * time.Second

// Store 持久化记录源. 记录不存在时返回 apperr.ErrNotFound.
type Store interface {
	Get(ctx context.Context, objectID string) (*model.ObjectRecord, error)
}

// entry 记录快照与绝对过期时间. 从二级缓存回填时沿用原过期时间，总有效期不超过一个 TTL.
type entry struct {
	Object    model.CachedObject `json:"object"`
	ExpiresAt time.Time          `json:"expires_at"`
}

func (e entry) fresh(now time.Time) bool { return now.Before(e.ExpiresAt) }

// Cache 元数据缓存，可并发使用.
type Cache struct {
	store        Store
	l1           *expirable.LRU[string, entry]
	l2           *cache.Cache
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
	// epoch 每次失效递增，进行中的回填发现 epoch 变化后不写缓存
	epoch atomic.Uint64
	// mu 使 epoch 检查与一级缓存写入、失效互斥
	mu     sync.Mutex
	logger zerolog.Logger
}

// Option 缓存选项.
type Option func(*Cache)

// WithShared 启用共享二级缓存.
func WithShared(l2 *cache.Cache) Option {
	return func(c *Cache) { c.l2 = l2 }
}

// WithFetchTimeout 设置持久化查询超时.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

// New 创建元数据缓存.
func New(store Store, cfg configs.CacheConfig, opts ...Option) *Cache {
	ttl := cfg.TTLDuration()
	if ttl <= 0 {
		ttl = time.Duration(configs.DefaultCacheTTL) * time.Second
	}

	size := cfg.MaxEntries
	if size <= 0 {
		size = configs.DefaultCacheMaxEntries
	}

	c := &Cache{
		store:        store,
		l1:           expirable.NewLRU[string, entry](size, nil, ttl),
		ttl:          ttl,
		fetchTimeout: defaultFetchTimeout,
		logger:       log.Component("metacache"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TTL 返回条目有效期.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Len 返回一级缓存条目数.
func (c *Cache) Len() int { return c.l1.Len() }

// Get 返回记录的副本. 未命中时最多发起一次持久化查询，所有等待者共享其结果.
// 查询失败对所有等待者返回 UpstreamUnavailable；不存在时返回 NotFound 且不做负缓存.
func (c *Cache) Get(ctx context.Context, objectID string) (*model.ObjectRecord, error) {
	if e, ok := c.l1.Get(objectID); ok && e.fresh(time.Now()) {
		metrics.MetaCacheLookups.WithLabelValues(metrics.ResultHit).Inc()
		return e.Object.Record(), nil
	}

	ch := c.group.DoChan(objectID, func() (any, error) {
		return c.fill(objectID)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.MetaCacheShared.Inc()
		}

		if res.Err != nil {
			return nil, res.Err
		}

		e := res.Val.(entry)

		return e.Object.Record(), nil
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindUpstreamTimeout, ctx.Err(), "metadata lookup cancelled")
	}
}

// fill 依次尝试二级缓存与持久化存储. 查询不绑定某个调用方的 ctx，避免领头请求断开导致所有等待者失败.
func (c *Cache) fill(objectID string) (entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	startEpoch := c.epoch.Load()

	if c.l2 != nil {
		e, err := cache.Get[entry](ctx, c.l2, objectID)
		if err == nil && e.fresh(time.Now()) {
			metrics.MetaCacheLookups.WithLabelValues(metrics.ResultHitL2).Inc()
			c.storeL1(objectID, e, startEpoch)

			return e, nil
		}

		if err != nil && !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn().Err(err).Str("object_id", objectID).Msg("shared metadata cache read failed")
		}
	}

	metrics.MetaCacheLookups.WithLabelValues(metrics.ResultMiss).Inc()

	rec, err := c.store.Get(ctx, objectID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.MetaCacheFetches.WithLabelValues(metrics.ResultOK).Inc()
			return entry{}, apperr.ErrNotFound
		}

		metrics.MetaCacheFetches.WithLabelValues(metrics.ResultError).Inc()
		c.logger.Error().Err(err).Str("object_id", objectID).Msg("metadata fetch failed")

		return entry{}, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "metadata store unavailable")
	}

	metrics.MetaCacheFetches.WithLabelValues(metrics.ResultOK).Inc()

	e := c.newEntry(rec)

	// 先写二级缓存再检查 epoch：失效总是先递增 epoch 再删除二级缓存，
	// 检查通过说明没有失效落在这次写入之前.
	if c.l2 != nil {
		if err := cache.Set(ctx, c.l2, objectID, e, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("object_id", objectID).Msg("shared metadata cache write failed")
		} else if c.epoch.Load() != startEpoch {
			if err := c.l2.Delete(ctx, objectID); err != nil {
				c.logger.Warn().Err(err).Str("object_id", objectID).Msg("withdraw stale shared metadata failed")
			}

			return e, nil
		}
	}

	c.storeL1(objectID, e, startEpoch)

	return e, nil
}

func (c *Cache) newEntry(rec *model.ObjectRecord) entry {
	return entry{Object: rec.Snapshot(), ExpiresAt: time.Now().Add(c.ttl)}
}

// storeL1 仅在查询期间没有发生失效时写入.
func (c *Cache) storeL1(objectID string, e entry, startEpoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch.Load() == startEpoch {
		c.l1.Add(objectID, e)
	}
}

// Put 写入一条新记录，上传完成时调用.
func (c *Cache) Put(ctx context.Context, rec *model.ObjectRecord) error {
	e := c.newEntry(rec)
	c.l1.Add(rec.ObjectID, e)

	if c.l2 != nil {
		if err := cache.Set(ctx, c.l2, rec.ObjectID, e, c.ttl); err != nil {
			return fmt.Errorf("write shared metadata cache: %w", err)
		}
	}

	return nil
}

// InvalidateLocal 只失效本实例的一级缓存，收到其他实例的删除事件时使用.
func (c *Cache) InvalidateLocal(objectID string) {
	c.mu.Lock()
	c.epoch.Add(1)
	c.l1.Remove(objectID)
	c.mu.Unlock()

	c.group.Forget(objectID)
}

// Invalidate 失效一级与二级缓存. 删除路径在确认之前同步调用.
func (c *Cache) Invalidate(ctx context.Context, objectID string) error {
	c.InvalidateLocal(objectID)

	if c.l2 != nil {
		if err := c.l2.Delete(ctx, objectID); err != nil {
			return fmt.Errorf("invalidate shared metadata cache: %w", err)
		}
	}

	return nil
}

// Purge 清空一级缓存.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch.Add(1)
	c.l1.Purge()
}
