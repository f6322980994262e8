package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/fastlink/pkg/cache"
)

// State 上传状态.
type State string

const (
	StatePending State = "pending"
	// StateCompleting 完成事件已认领，正在落库. 只能再迁移到同一对象的 complete.
	StateCompleting State = "completing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Terminal 是否为终态.
func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }

// ErrUnknownUpload 上传 ID 不存在或已过保留期.
var ErrUnknownUpload = errors.New("ingest: unknown upload")

// Status 一次上传的状态.
type Status struct {
	PendingID  string    `json:"pending_id"`
	State      State     `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size"`
	Locator    string    `json:"locator"`
	ObjectID   string    `json:"object_id,omitempty"`
	AccessCode string    `json:"access_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tracker 在 KV 中保存上传状态. pending -> 终态的迁移只会成功一次.
type Tracker struct {
	store *cache.Cache
	ttl   time.Duration

	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

// NewTracker 创建状态表. ttl 为状态保留时间.
func NewTracker(store *cache.Cache, ttl time.Duration) *Tracker {
	return &Tracker{store: store, ttl: ttl}
}

func (t *Tracker) lock(id string) func() {
	l := &t.locks[xxhash.Sum64String(id)%lockStripes]
	l.Lock()

	return l.Unlock
}

// Create 记录新的 pending 上传.
func (t *Tracker) Create(ctx context.Context, st Status) error {
	if err := cache.Set(ctx, t.store, st.PendingID, st, t.ttl); err != nil {
		return fmt.Errorf("track upload %s: %w", st.PendingID, err)
	}

	return nil
}

// Get 查询上传状态.
func (t *Tracker) Get(ctx context.Context, id string) (Status, error) {
	st, err := cache.Get[Status](ctx, t.store, id)
	if errors.Is(err, cache.ErrMiss) {
		return Status{}, ErrUnknownUpload
	}

	return st, err
}

// Claim 为 objectID 认领 pending 上传，认领后超时与失败事件不再生效.
// 同一 objectID 重复认领返回 true，便于重投的完成事件继续落库.
func (t *Tracker) Claim(ctx context.Context, id, objectID string) (Status, bool, error) {
	unlock := t.lock(id)
	defer unlock()

	st, err := t.Get(ctx, id)
	if err != nil {
		return Status{}, false, err
	}

	switch st.State {
	case StateCompleting:
		return st, st.ObjectID == objectID, nil
	case StatePending:
	default:
		return st, false, nil
	}

	st.State = StateCompleting
	st.ObjectID = objectID
	st.UpdatedAt = time.Now().UTC()

	if err := t.save(ctx, st); err != nil {
		return st, false, err
	}

	return st, true, nil
}

// Release 撤销 objectID 的认领，上传回到 pending.
func (t *Tracker) Release(ctx context.Context, id, objectID string) error {
	unlock := t.lock(id)
	defer unlock()

	st, err := t.Get(ctx, id)
	if err != nil {
		return err
	}

	if st.State != StateCompleting || st.ObjectID != objectID {
		return nil
	}

	st.State = StatePending
	st.ObjectID = ""
	st.UpdatedAt = time.Now().UTC()

	return t.save(ctx, st)
}

// Transition 把上传迁移到终态. 已是终态，或已被其它对象认领时返回 false 且不修改.
func (t *Tracker) Transition(ctx context.Context, id string, apply func(*Status)) (Status, bool, error) {
	unlock := t.lock(id)
	defer unlock()

	cur, err := t.Get(ctx, id)
	if err != nil {
		return Status{}, false, err
	}

	if cur.State.Terminal() {
		return cur, false, nil
	}

	st := cur
	apply(&st)
	st.UpdatedAt = time.Now().UTC()

	if !st.State.Terminal() {
		return cur, false, fmt.Errorf("transition of %s did not reach a terminal state", id)
	}

	if cur.State == StateCompleting && (st.State != StateComplete || st.ObjectID != cur.ObjectID) {
		return cur, false, nil
	}

	if err := t.save(ctx, st); err != nil {
		return cur, false, err
	}

	return st, true, nil
}

func (t *Tracker) save(ctx context.Context, st Status) error {
	if err := cache.Set(ctx, t.store, st.PendingID, st, t.ttl); err != nil {
		return fmt.Errorf("update upload %s: %w", st.PendingID, err)
	}

	return nil
}

// Pending 列出所有 pending 上传，按创建时间排序. 已认领的上传不在其中.
func (t *Tracker) Pending(ctx context.Context) ([]Status, error) {
	ids, err := t.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(ids))

	for _, id := range ids {
		st, err := t.Get(ctx, id)
		if err != nil {
			continue
		}

		if st.State == StatePending {
			out = append(out, st)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}
