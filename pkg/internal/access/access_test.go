package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/model"
)

type mapSource struct {
	recs map[string]*model.ObjectRecord
	err  error
}

func (m *mapSource) Get(_ context.Context, id string) (*model.ObjectRecord, error) {
	if m.err != nil {
		return nil, m.err
	}

	r, ok := m.recs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}

	return r, nil
}

type countingCounter struct {
	mu  sync.Mutex
	ids []string
}

func (c *countingCounter) Increment(id string) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
}

func newSource() *mapSource {
	return &mapSource{recs: map[string]*model.ObjectRecord{
		"live": {ObjectID: "live", AccessCode: "right-code"},
		"dead": {ObjectID: "dead", AccessCode: "right-code", Deleted: true},
	}}
}

func TestAuthorize_Outcomes(t *testing.T) {
	counter := &countingCounter{}
	a := NewAuthorizer(newSource(), counter)
	ctx := context.Background()

	rec, err := a.Authorize(ctx, "live", "right-code")
	require.NoError(t, err)
	assert.Equal(t, "live", rec.ObjectID)

	_, err = a.Authorize(ctx, "missing", "right-code")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = a.Authorize(ctx, "live", "wrong-code")
	assert.ErrorIs(t, err, apperr.ErrCodeMismatch)

	_, err = a.Authorize(ctx, "live", "")
	assert.ErrorIs(t, err, apperr.ErrCodeMismatch)

	_, err = a.Authorize(ctx, "dead", "wrong-code")
	assert.ErrorIs(t, err, apperr.ErrGone)

	assert.Equal(t, []string{"live"}, counter.ids)
}

func TestAuthorize_MismatchLooksLikeNotFound(t *testing.T) {
	a := NewAuthorizer(newSource(), nil)
	ctx := context.Background()

	_, errMissing := a.Authorize(ctx, "missing", "x")
	_, errMismatch := a.Authorize(ctx, "live", "x")

	assert.Equal(t, apperr.Status(errMissing), apperr.Status(errMismatch))
	assert.Equal(t, apperr.Public(errMissing), apperr.Public(errMismatch))
}

func TestVerify_DoesNotCount(t *testing.T) {
	counter := &countingCounter{}
	a := NewAuthorizer(newSource(), counter)

	_, err := a.Verify(context.Background(), "live", "right-code")
	require.NoError(t, err)
	assert.Empty(t, counter.ids)
}

func TestDecide_UpstreamErrorPropagates(t *testing.T) {
	boom := apperr.Wrap(apperr.KindUpstreamUnavailable, errors.New("db down"), "")
	a := NewAuthorizer(&mapSource{err: boom}, nil)

	_, err := a.Authorize(context.Background(), "live", "right-code")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

type recordingStore struct {
	mu     sync.Mutex
	counts map[string]int64
	calls  int
	err    error
}

func (s *recordingStore) IncrementDownloads(_ context.Context, counts map[string]int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return s.err
	}

	if s.counts == nil {
		s.counts = map[string]int64{}
	}

	for k, v := range counts {
		s.counts[k] += v
	}

	return nil
}

func (s *recordingStore) snapshot() (map[string]int64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}

	return out, s.calls
}

func counterConfig() configs.AccessConfig {
	return configs.AccessConfig{QueueSize: 1024, FlushInterval: 3600, FlushBatch: 1000, FlushTimeout: 5}
}

func TestAsyncCounter_CoalescesOnFlush(t *testing.T) {
	store := &recordingStore{}
	c := NewAsyncCounter(store, counterConfig())

	for range 10 {
		c.Increment("a")
	}

	c.Increment("b")

	require.NoError(t, c.Flush(context.Background()))

	counts, calls := store.snapshot()
	assert.Equal(t, map[string]int64{"a": 10, "b": 1}, counts)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Close(context.Background()))
}

func TestAsyncCounter_CloseFlushesAndStopsAccepting(t *testing.T) {
	store := &recordingStore{}
	c := NewAsyncCounter(store, counterConfig())

	c.Increment("a")
	require.NoError(t, c.Close(context.Background()))

	c.Increment("a")

	counts, _ := store.snapshot()
	assert.Equal(t, int64(1), counts["a"])
	require.NoError(t, c.Close(context.Background()))
}

func TestAsyncCounter_BatchTriggersFlush(t *testing.T) {
	store := &recordingStore{}
	cfg := counterConfig()
	cfg.FlushBatch = 2

	c := NewAsyncCounter(store, cfg)
	defer func() { _ = c.Close(context.Background()) }()

	c.Increment("a")
	c.Increment("b")

	require.Eventually(t, func() bool {
		_, calls := store.snapshot()
		return calls >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncCounter_FullQueueDrops(t *testing.T) {
	store := &recordingStore{}
	cfg := counterConfig()
	cfg.QueueSize = 1

	c := NewAsyncCounter(store, cfg)

	done := make(chan struct{})

	go func() {
		for range 1000 {
			c.Increment("a")
		}

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Increment blocked on a full queue")
	}

	require.NoError(t, c.Close(context.Background()))

	counts, _ := store.snapshot()
	assert.LessOrEqual(t, counts["a"], int64(1000))
	assert.Positive(t, counts["a"])
}

func TestAsyncCounter_FlushErrorIsReported(t *testing.T) {
	store := &recordingStore{err: errors.New("db down")}
	c := NewAsyncCounter(store, counterConfig())

	c.Increment("a")
	require.Error(t, c.Flush(context.Background()))
	require.NoError(t, c.Close(context.Background()))
}

func TestAsyncCounter_HookSeesCounts(t *testing.T) {
	store := &recordingStore{}

	var (
		mu  sync.Mutex
		got map[string]int64
	)

	c := NewAsyncCounter(store, counterConfig(), WithFlushHook(func(_ context.Context, counts map[string]int64, _ time.Time) {
		mu.Lock()
		got = counts
		mu.Unlock()
	}))

	c.Increment("x")
	c.Increment("x")
	require.NoError(t, c.Flush(context.Background()))

	mu.Lock()
	assert.Equal(t, int64(2), got["x"])
	mu.Unlock()

	require.NoError(t, c.Close(context.Background()))
}
