package metacache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/cache"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/model"
	"github.com/yeisme/fastlink/pkg/internal/storage/kv"
)

// countingStore 统计查询次数，release 关闭前查询阻塞.
type countingStore struct {
	calls   atomic.Int32
	release chan struct{}
	mu      sync.Mutex
	recs    map[string]*model.ObjectRecord
	err     error
}

func newCountingStore() *countingStore {
	return &countingStore{recs: map[string]*model.ObjectRecord{
		"obj1": {ObjectID: "obj1", AccessCode: "code", FileName: "a.mp4", Size: 10},
	}}
}

func (s *countingStore) Get(ctx context.Context, id string) (*model.ObjectRecord, error) {
	s.calls.Add(1)

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	r, ok := s.recs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}

	cp := *r

	return &cp, nil
}

func (s *countingStore) set(r *model.ObjectRecord) {
	s.mu.Lock()
	s.recs[r.ObjectID] = r
	s.mu.Unlock()
}

func testConfig() configs.CacheConfig {
	return configs.CacheConfig{TTL: 60, MaxEntries: 100}
}

func TestGet_SingleFlight50(t *testing.T) {
	store := newCountingStore()
	store.release = make(chan struct{})
	c := New(store, testConfig())

	const n = 50

	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
		errs  atomic.Int32
	)

	ready.Add(n)
	done.Add(n)

	for range n {
		go func() {
			defer done.Done()

			ready.Done()

			rec, err := c.Get(context.Background(), "obj1")
			if err != nil || rec.ObjectID != "obj1" {
				errs.Add(1)
			}
		}()
	}

	ready.Wait()
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	done.Wait()

	assert.Equal(t, int32(1), store.calls.Load())
	assert.Zero(t, errs.Load())

	_, err := c.Get(context.Background(), "obj1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.calls.Load(), "second lookup must hit the cache")
}

func TestGet_FailurePropagatesToAllWaiters(t *testing.T) {
	store := newCountingStore()
	store.release = make(chan struct{})
	store.err = errors.New("connection refused")
	c := New(store, testConfig())

	const n = 10

	var (
		wg          sync.WaitGroup
		unavailable atomic.Int32
	)

	wg.Add(n)

	for range n {
		go func() {
			defer wg.Done()

			_, err := c.Get(context.Background(), "obj1")
			if errors.Is(err, apperr.ErrUpstreamUnavailable) {
				unavailable.Add(1)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Equal(t, int32(n), unavailable.Load())
	assert.Zero(t, c.Len(), "failures are not cached")
}

func TestGet_NotFoundIsNotCached(t *testing.T) {
	store := newCountingStore()
	c := New(store, testConfig())

	_, err := c.Get(context.Background(), "nope")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	store.set(&model.ObjectRecord{ObjectID: "nope"})

	rec, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, "nope", rec.ObjectID)
	assert.Equal(t, int32(2), store.calls.Load())
}

func TestInvalidate_RefetchesAfterDelete(t *testing.T) {
	store := newCountingStore()
	c := New(store, testConfig())
	ctx := context.Background()

	rec, err := c.Get(ctx, "obj1")
	require.NoError(t, err)
	assert.False(t, rec.Deleted)

	store.set(&model.ObjectRecord{ObjectID: "obj1", AccessCode: "code", Deleted: true})
	require.NoError(t, c.Invalidate(ctx, "obj1"))

	rec, err = c.Get(ctx, "obj1")
	require.NoError(t, err)
	assert.True(t, rec.Deleted)
}

func TestInvalidate_DuringFillIsNotOverwritten(t *testing.T) {
	store := newCountingStore()
	store.release = make(chan struct{})
	c := New(store, testConfig())

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = c.Get(context.Background(), "obj1")
	}()

	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, time.Millisecond)
	c.InvalidateLocal("obj1")
	close(store.release)
	<-done

	assert.Zero(t, c.Len())
}

func TestGet_ExpiresAfterTTL(t *testing.T) {
	store := newCountingStore()
	c := New(store, testConfig())
	c.ttl = 20 * time.Millisecond

	_, err := c.Get(context.Background(), "obj1")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = c.Get(context.Background(), "obj1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.calls.Load())
}

func TestGet_ReturnsCopies(t *testing.T) {
	c := New(newCountingStore(), testConfig())

	a, err := c.Get(context.Background(), "obj1")
	require.NoError(t, err)

	a.FileName = "mutated"

	b, err := c.Get(context.Background(), "obj1")
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", b.FileName)
}

func TestShared_SecondInstanceReadsL2(t *testing.T) {
	mem, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	defer mem.Close()

	l2 := cache.NewCache(mem, cache.WithPrefix("meta:"))

	storeA := newCountingStore()
	storeB := newCountingStore()

	a := New(storeA, testConfig(), WithShared(l2))
	b := New(storeB, testConfig(), WithShared(l2))
	ctx := context.Background()

	_, err = a.Get(ctx, "obj1")
	require.NoError(t, err)

	rec, err := b.Get(ctx, "obj1")
	require.NoError(t, err)
	assert.Equal(t, "code", rec.AccessCode)
	assert.Zero(t, storeB.calls.Load())

	require.NoError(t, a.Invalidate(ctx, "obj1"))

	ok, err := l2.Exists(ctx, "obj1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_CallerCancelDoesNotPoisonFlight(t *testing.T) {
	store := newCountingStore()
	store.release = make(chan struct{})
	c := New(store, testConfig())

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		_, err := c.Get(ctx, "obj1")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, apperr.ErrUpstreamTimeout)

	other := make(chan error, 1)

	go func() {
		_, err := c.Get(context.Background(), "obj1")
		other <- err
	}()

	close(store.release)
	require.NoError(t, <-other)
	assert.Equal(t, int32(1), store.calls.Load())
}

// gatedKV 第一次 Set 在 release 关闭前阻塞.
type gatedKV struct {
	kv.KVStore

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})

	return g.KVStore.Set(ctx, key, value, ttl)
}

func TestShared_InvalidateDuringL2WriteWins(t *testing.T) {
	mem, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	defer mem.Close()

	gated := &gatedKV{KVStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
	l2 := cache.NewCache(gated, cache.WithPrefix("meta:"))

	store := newCountingStore()
	a := New(store, testConfig(), WithShared(l2))
	ctx := context.Background()

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = a.Get(ctx, "obj1")
	}()

	<-gated.entered

	store.set(&model.ObjectRecord{ObjectID: "obj1", AccessCode: "code", Deleted: true})
	require.NoError(t, a.Invalidate(ctx, "obj1"))

	close(gated.release)
	<-done

	ok, err := l2.Exists(ctx, "obj1")
	require.NoError(t, err)
	assert.False(t, ok, "stale fill must not survive in the shared cache")
	assert.Zero(t, a.Len())

	fresh := newCountingStore()
	fresh.set(&model.ObjectRecord{ObjectID: "obj1", AccessCode: "code", Deleted: true})
	b := New(fresh, testConfig(), WithShared(l2))

	rec, err := b.Get(ctx, "obj1")
	require.NoError(t, err)
	assert.True(t, rec.Deleted)
	assert.Equal(t, int32(1), fresh.calls.Load())
}
