package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yeisme/fastlink/pkg/configs"
)

// ErrMemoryFull 达到 MaxEntries 时写入新键返回.
var ErrMemoryFull = errors.New("kv: memory store is full")

type memoryEntry struct {
	value    []byte
	expireAt time.Time // 零值表示不过期
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// MemoryKV 进程内 KV 实现，支持 TTL.
// 过期键在读取时惰性删除，另有后台协程按 SweepInterval 定期清理.
type MemoryKV struct {
	mu         sync.RWMutex
	data       map[string]memoryEntry
	maxEntries int
	now        func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMemoryKV 创建内存 KV 实例，config 可以为 nil 或 *configs.MemoryKVConfig.
func NewMemoryKV(_ context.Context, config any) (KVStore, error) {
	var cfg configs.MemoryKVConfig

	switch c := config.(type) {
	case nil:
	case *configs.MemoryKVConfig:
		cfg = *c
	default:
		return nil, fmt.Errorf("invalid memory KV config")
	}

	m := &MemoryKV{
		data:       make(map[string]memoryEntry),
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go m.sweepLoop(time.Duration(cfg.SweepInterval) * time.Second)
	} else {
		close(m.done)
	}

	return m, nil
}

func (m *MemoryKV) sweepLoop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep 删除所有已过期的键，返回删除数量.
func (m *MemoryKV) sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			n++
		}
	}

	return n
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if e.expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.data[key]; ok && cur.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()

		return nil, ErrNotFound
	}

	// 返回副本
	result := make([]byte, len(e.value))
	copy(result, e.value)

	return result, nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	e := memoryEntry{value: data}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		return ErrMemoryFull
	}

	m.data[key] = e

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return err == nil, err
}

// Keys 获取匹配模式且未过期的键，按字典序返回.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := m.now()

	m.mu.RLock()
	keys := make([]string, 0, len(m.data))

	for k, e := range m.data {
		if e.expired(now) || !matchKey(pattern, k) {
			continue
		}

		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	return keys, nil
}

// Close 停止后台清理.
func (m *MemoryKV) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done

	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
