// Package access 实现下载授权与异步下载计数.
package access

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/internal/model"
	"github.com/yeisme/fastlink/pkg/metrics"
)

// Outcome 授权结果.
type Outcome int

const (
	Authorized Outcome = iota
	NotFound
	CodeMismatch
	Gone
)

func (o Outcome) String() string {
	switch o {
	case Authorized:
		return "authorized"
	case NotFound:
		return "not_found"
	case CodeMismatch:
		return "code_mismatch"
	case Gone:
		return "gone"
	default:
		return "unknown"
	}
}

// Decision 一次授权判定，不持久化. 只有 Authorized 时 Record 非空.
type Decision struct {
	Outcome Outcome
	Record  *model.ObjectRecord
}

// Err 把非 Authorized 的结果转换为 apperr.
func (d Decision) Err() error {
	switch d.Outcome {
	case Authorized:
		return nil
	case NotFound:
		return apperr.ErrNotFound
	case CodeMismatch:
		return apperr.ErrCodeMismatch
	case Gone:
		return apperr.ErrGone
	default:
		return apperr.ErrInternal
	}
}

// RecordSource 按 object id 取记录. 不存在时返回 apperr.ErrNotFound.
type RecordSource interface {
	Get(ctx context.Context, objectID string) (*model.ObjectRecord, error)
}

// Counter 接收一次下载计数，不阻塞.
type Counter interface {
	Increment(objectID string)
}

// Authorizer 校验 (object id, access code).
type Authorizer struct {
	source  RecordSource
	counter Counter
}

// NewAuthorizer 创建授权器. counter 可以为 nil.
func NewAuthorizer(source RecordSource, counter Counter) *Authorizer {
	return &Authorizer{source: source, counter: counter}
}

// Decide 判定但不计数. 只有取记录失败（非 NotFound）时返回 error.
// 顺序：不存在 → 已删除 → 访问码不符.
func (a *Authorizer) Decide(ctx context.Context, objectID, code string) (Decision, error) {
	rec, err := a.source.Get(ctx, objectID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return a.record(Decision{Outcome: NotFound}), nil
		}

		return Decision{}, err
	}

	if rec == nil {
		return a.record(Decision{Outcome: NotFound}), nil
	}

	if rec.Deleted {
		return a.record(Decision{Outcome: Gone}), nil
	}

	if !codeEqual(code, rec.AccessCode) {
		return a.record(Decision{Outcome: CodeMismatch}), nil
	}

	return a.record(Decision{Outcome: Authorized, Record: rec}), nil
}

// Authorize 判定并在成功时异步计数一次下载.
func (a *Authorizer) Authorize(ctx context.Context, objectID, code string) (*model.ObjectRecord, error) {
	d, err := a.Decide(ctx, objectID, code)
	if err != nil {
		return nil, err
	}

	if err := d.Err(); err != nil {
		return nil, err
	}

	a.Count(objectID)

	return d.Record, nil
}

// Count 异步计数一次下载. 用于先 Verify、确定要返回内容后再计数的场景.
func (a *Authorizer) Count(objectID string) {
	if a.counter != nil {
		a.counter.Increment(objectID)
	}
}

// Verify 判定但不计数，用于 HEAD 与信息查询.
func (a *Authorizer) Verify(ctx context.Context, objectID, code string) (*model.ObjectRecord, error) {
	d, err := a.Decide(ctx, objectID, code)
	if err != nil {
		return nil, err
	}

	if err := d.Err(); err != nil {
		return nil, err
	}

	return d.Record, nil
}

func (a *Authorizer) record(d Decision) Decision {
	metrics.AccessDecisions.WithLabelValues(d.Outcome.String()).Inc()
	return d
}

// codeEqual 先取摘要再做常量时间比较，耗时与访问码长度无关. 空码永远不匹配.
func codeEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}

	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))

	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}
