// Package cache 提供基于键值存储的泛型缓存.
//
// 值使用 sonic 编码为 JSON 后写入 kv.KVStore，TTL 由底层存储负责.
// edge 用它保存完整响应，origin 用它作为元数据缓存的共享二级缓存.
//
// 基本用法:
//
//	c := cache.NewCache(store, cache.WithPrefix("meta:"))
//	err := cache.Set(ctx, c, id, record, 5*time.Minute)
//	rec, err := cache.Get[model.ObjectRecord](ctx, c, id)
//	if errors.Is(err, cache.ErrMiss) {
//		// 未命中
//	}
//
// Cache 本身不加锁，并发安全性取决于底层 KVStore，仓库内的实现都是并发安全的.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/fastlink/pkg/internal/storage/kv"
)

// ErrMiss 缓存未命中（键不存在或已过期）.
var ErrMiss = errors.New("cache: miss")

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore kv.KVStore
	prefix  string
}

// Option 配置 Cache.
type Option func(*Cache)

// WithPrefix 为所有键加上前缀，不同用途的缓存可以共用一个 KVStore.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore, opts ...Option) *Cache {
	c := &Cache{
		kvStore: kvStore,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Key 返回加上前缀后的实际存储键.
func (c *Cache) Key(key string) string {
	return c.prefix + key
}

// Store 返回底层 KVStore.
func (c *Cache) Store() kv.KVStore {
	return c.kvStore
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.Key(key))
	if errors.Is(err, kv.ErrNotFound) {
		return zero, ErrMiss
	}

	if err != nil {
		return zero, fmt.Errorf("cache get %q: %w", key, err)
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.Key(key), data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, c.Key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.Key(key))
}

// GetOrSet 获取缓存值，未命中时调用 getter 并写回.
// 读缓存出错按未命中处理；写回失败不影响返回值.
// 不做并发合并，需要 single-flight 的调用方自行处理.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	value, err := getter()
	if err != nil {
		var zero T
		return zero, err
	}

	_ = Set(ctx, c, key, value, ttl)

	return value, nil
}

// Keys 列出当前前缀下的键（去掉前缀）.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.kvStore.Keys(ctx, c.prefix+"*")
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, c.prefix))
	}

	return out, nil
}

// Clear 删除当前前缀下的全部键.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.kvStore.Keys(ctx, c.prefix+"*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
