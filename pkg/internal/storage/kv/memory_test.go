package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/storage/kv"
)

func TestMemoryKVExpiry(t *testing.T) {
	ctx := context.Background()

	store, err := kv.NewKVStore(ctx, kv.KVTypeMemory, &configs.MemoryKVConfig{})
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, "short", []byte("a"), 30*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := store.Set(ctx, "forever", []byte("b"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	if got, err := store.Get(ctx, "short"); err != nil || string(got) != "a" {
		t.Fatalf("get before expiry = %q, %v", got, err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}

	if ok, _ := store.Exists(ctx, "short"); ok {
		t.Fatal("expired key still reported by Exists")
	}

	keys, _ := store.Keys(ctx, "")
	if len(keys) != 1 || keys[0] != "forever" {
		t.Fatalf("keys = %v, want [forever]", keys)
	}
}

func TestMemoryKVSweeper(t *testing.T) {
	ctx := context.Background()

	store, err := kv.NewKVStore(ctx, kv.KVTypeMemory, &configs.MemoryKVConfig{SweepInterval: 1})
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	if err := store.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Close 可重复调用
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemoryKVMaxEntries(t *testing.T) {
	ctx := context.Background()

	store, _ := kv.NewKVStore(ctx, kv.KVTypeMemory, &configs.MemoryKVConfig{MaxEntries: 2})
	defer store.Close()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)

	if err := store.Set(ctx, "c", []byte("3"), 0); !errors.Is(err, kv.ErrMemoryFull) {
		t.Fatalf("expected ErrMemoryFull, got %v", err)
	}

	// 覆盖已有键不受限制
	if err := store.Set(ctx, "a", []byte("x"), 0); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestMemoryKVKeysPattern(t *testing.T) {
	ctx := context.Background()

	store, _ := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	defer store.Close()

	for _, k := range []string{"rc:1", "rc:2", "meta:1"} {
		_ = store.Set(ctx, k, []byte("v"), 0)
	}

	keys, err := store.Keys(ctx, "rc:*")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}

	if len(keys) != 2 || keys[0] != "rc:1" || keys[1] != "rc:2" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestMemoryKVReturnsCopy(t *testing.T) {
	ctx := context.Background()

	store, _ := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	defer store.Close()

	in := []byte("hello")
	_ = store.Set(ctx, "k", in, 0)
	in[0] = 'X'

	got, _ := store.Get(ctx, "k")
	got[1] = 'Y'

	again, _ := store.Get(ctx, "k")
	if string(again) != "hello" {
		t.Fatalf("stored value mutated: %q", again)
	}
}

func TestGroupcacheKVExpiry(t *testing.T) {
	ctx := context.Background()

	store, err := kv.NewKVStore(ctx, kv.KVTypeGroupcache, &configs.GroupcacheKVConfig{
		Name:       "test-groupcache-ttl",
		CacheBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("create groupcache kv: %v", err)
	}

	_ = store.Set(ctx, "k", []byte("v"), 30*time.Millisecond)

	if got, err := store.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("get = %q, %v", got, err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := store.Get(ctx, "k"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = store.Set(ctx, "d", []byte("v"), 0)
	_ = store.Delete(ctx, "d")

	if ok, _ := store.Exists(ctx, "d"); ok {
		t.Fatal("deleted key still exists")
	}
}

func TestNewKVClientMemory(t *testing.T) {
	client, err := kv.NewKVClient(context.Background(), configs.KVConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	if _, err := kv.NewKVClient(context.Background(), configs.KVConfig{Type: "etcd"}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
