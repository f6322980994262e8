// Package ingest 是上传队列的边界：受理上传后立即返回 pending id，
// 由 worker 校验暂存对象，消费者保证每个上传恰好落到一个终态.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/model"
	"github.com/yeisme/fastlink/pkg/internal/policy"
	"github.com/yeisme/fastlink/pkg/internal/storage/s3"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/metrics"
	"github.com/yeisme/fastlink/pkg/queue"
	"github.com/yeisme/fastlink/pkg/rule"
)

// ReasonTimeout 超时未完成的上传的失败原因.
const ReasonTimeout = "timeout"

// Statter 查询暂存对象.
type Statter interface {
	Stat(ctx context.Context, locator string) (s3.ObjectInfo, error)
}

// RecordWriter 持久化新记录，重复写入同一 object_id 不报错.
type RecordWriter interface {
	Insert(ctx context.Context, rec *model.ObjectRecord) error
}

// CacheWriter 元数据缓存的写入与失效.
type CacheWriter interface {
	Put(ctx context.Context, rec *model.ObjectRecord) error
	InvalidateLocal(objectID string)
}

// UploadRequest 上传请求. Locator 指向已暂存到对象存储的数据.
type UploadRequest struct {
	FileName string `json:"file_name" rule:"required,max=1024"`
	Size     int64  `json:"size"      rule:"min=0"`
	Locator  string `json:"locator"   rule:"required,max=1024"`
	MimeType string `json:"mime_type" rule:"omitempty,max=255"`
}

// Deps 依赖.
type Deps struct {
	Publisher message.Publisher
	Tracker   *Tracker
	Stat      Statter
	Records   RecordWriter
	Meta      CacheWriter
	// Producer 写入事件头，便于排查
	Producer string
}

// Service 上传接入.
type Service struct {
	cfg    configs.IngestConfig
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
}

// New 创建服务. 只做受理与查询时 Stat/Records/Meta 可以为空.
func New(cfg configs.IngestConfig, deps Deps) *Service {
	return &Service{
		cfg:    cfg,
		deps:   deps,
		logger: log.Component("ingest"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue 受理上传并立即返回 pending 状态. 校验与落库异步完成.
func (s *Service) Enqueue(ctx context.Context, req UploadRequest) (Status, error) {
	if err := rule.ValidateStruct(req); err != nil {
		return Status{}, apperr.Wrap(apperr.KindBadRequest, err, "invalid upload request")
	}

	if s.cfg.MaxFileSize > 0 && req.Size > s.cfg.MaxFileSize {
		return Status{}, apperr.New(apperr.KindBadRequest, "file too large")
	}

	name := SanitizeFileName(req.FileName)

	if len(s.cfg.AllowedExtensions) > 0 && !slices.Contains(s.cfg.AllowedExtensions, policy.Ext(name)) {
		return Status{}, apperr.New(apperr.KindBadRequest, "file type not allowed")
	}

	now := s.now()
	st := Status{
		PendingID: NewPendingID(),
		State:     StatePending,
		FileName:  name,
		Size:      req.Size,
		Locator:   req.Locator,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.deps.Tracker.Create(ctx, st); err != nil {
		return Status{}, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "track upload")
	}

	err := queue.PublishUploadRequested(s.deps.Publisher, queue.UploadRequestedPayload{
		PendingID:   st.PendingID,
		FileName:    name,
		Size:        req.Size,
		Locator:     req.Locator,
		MimeType:    req.MimeType,
		RequestedAt: now,
	}, queue.WithProducer(s.deps.Producer))
	if err != nil {
		_, _, _ = s.deps.Tracker.Transition(ctx, st.PendingID, func(st *Status) {
			st.State = StateFailed
			st.Reason = "enqueue failed"
		})

		return Status{}, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "publish upload request")
	}

	metrics.IngestEvents.WithLabelValues(string(StatePending)).Inc()
	s.logger.Info().Str("pending_id", st.PendingID).Str("file", name).Int64("size", req.Size).Msg("upload enqueued")

	return st, nil
}

// Status 查询上传状态.
func (s *Service) Status(ctx context.Context, pendingID string) (Status, error) {
	st, err := s.deps.Tracker.Get(ctx, pendingID)
	if errors.Is(err, ErrUnknownUpload) {
		return Status{}, apperr.Wrap(apperr.KindNotFound, err, pendingID)
	}

	return st, err
}

// Register 在 router 上注册消费者. worker 为 true 时同时注册校验 worker.
func (s *Service) Register(router *message.Router, sub message.Subscriber, worker bool) {
	if worker {
		router.AddNoPublisherHandler("ingest.verify", queue.TopicUploadRequested, sub, s.verify)
	}

	router.AddNoPublisherHandler("ingest.completed", queue.TopicUploadCompleted, sub, s.onCompleted)
	router.AddNoPublisherHandler("ingest.failed", queue.TopicUploadFailed, sub, s.onFailed)
	router.AddNoPublisherHandler("ingest.deleted", queue.TopicObjectDeleted, sub, s.onDeleted)
}

// verify 校验暂存对象并发布终态事件. 只有发布失败才返回错误让消息重投.
func (s *Service) verify(msg *message.Message) error {
	m, err := queue.ParseUploadRequested(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", msg.UUID).Msg("drop malformed upload request")
		return nil
	}

	p := m.Payload
	ctx := msg.Context()

	info, err := s.deps.Stat.Stat(ctx, p.Locator)

	switch {
	case errors.Is(err, s3.ErrObjectNotFound):
		return s.fail(p.PendingID, "object not found in store")
	case err != nil:
		s.logger.Warn().Err(err).Str("pending_id", p.PendingID).Msg("stat staged object failed")
		return s.fail(p.PendingID, "object store unavailable")
	case p.Size > 0 && info.Size != p.Size:
		return s.fail(p.PendingID, fmt.Sprintf("size mismatch: declared %d, stored %d", p.Size, info.Size))
	}

	objectID, err := NewObjectID()
	if err != nil {
		return err
	}

	code, err := NewAccessCode()
	if err != nil {
		return err
	}

	mime := p.MimeType
	if mime == "" {
		mime = info.ContentType
	}

	now := s.now()
	rec := model.ObjectRecord{
		ObjectID:   objectID,
		AccessCode: code,
		FileName:   p.FileName,
		Size:       info.Size,
		Extension:  policy.Ext(p.FileName),
		MimeType:   mime,
		Locator:    p.Locator,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return queue.PublishUploadCompleted(s.deps.Publisher, queue.UploadCompletedPayload{
		PendingID: p.PendingID,
		Record:    rec.Snapshot(),
	}, queue.WithProducer(s.deps.Producer))
}

func (s *Service) fail(pendingID, reason string) error {
	return queue.PublishUploadFailed(s.deps.Publisher, queue.UploadFailedPayload{
		PendingID: pendingID,
		Reason:    reason,
	}, queue.WithProducer(s.deps.Producer))
}

// onCompleted 先认领上传，再落库、填充元数据缓存，最后迁移到 complete.
// 重复、迟到或输给失败事件的完成事件直接确认.
func (s *Service) onCompleted(msg *message.Message) error {
	m, err := queue.ParseUploadCompleted(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", msg.UUID).Msg("drop malformed completion")
		return nil
	}

	ctx := msg.Context()
	id := m.Payload.PendingID
	rec := m.Payload.Record.Record()

	_, claimed, err := s.deps.Tracker.Claim(ctx, id, rec.ObjectID)
	if err != nil {
		if errors.Is(err, ErrUnknownUpload) {
			s.logger.Warn().Str("pending_id", id).Msg("completion for unknown upload ignored")
			return nil
		}

		return err
	}

	if !claimed {
		metrics.IngestEvents.WithLabelValues("duplicate").Inc()
		return nil
	}

	if err := s.deps.Records.Insert(ctx, rec); err != nil {
		if rerr := s.deps.Tracker.Release(ctx, id, rec.ObjectID); rerr != nil {
			s.logger.Warn().Err(rerr).Str("pending_id", id).Msg("release upload claim failed")
		}

		return fmt.Errorf("insert record %s: %w", rec.ObjectID, err)
	}

	if err := s.deps.Meta.Put(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("object_id", rec.ObjectID).Msg("populate metadata cache failed")
	}

	_, changed, err := s.deps.Tracker.Transition(ctx, id, func(st *Status) {
		st.State = StateComplete
		st.ObjectID = rec.ObjectID
		st.AccessCode = rec.AccessCode
		st.Size = rec.Size
	})
	if err != nil {
		return err
	}

	if changed {
		metrics.IngestEvents.WithLabelValues(string(StateComplete)).Inc()
		s.logger.Info().Str("pending_id", id).Str("object_id", rec.ObjectID).Msg("upload completed")
	}

	return nil
}

func (s *Service) onFailed(msg *message.Message) error {
	m, err := queue.ParseUploadFailed(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", msg.UUID).Msg("drop malformed failure")
		return nil
	}

	id := m.Payload.PendingID

	_, changed, err := s.deps.Tracker.Transition(msg.Context(), id, func(st *Status) {
		st.State = StateFailed
		st.Reason = m.Payload.Reason
	})

	switch {
	case errors.Is(err, ErrUnknownUpload):
		return nil
	case err != nil:
		return err
	case changed:
		metrics.IngestEvents.WithLabelValues(string(StateFailed)).Inc()
		s.logger.Warn().Str("pending_id", id).Str("reason", m.Payload.Reason).Msg("upload failed")
	default:
		metrics.IngestEvents.WithLabelValues("duplicate").Inc()
	}

	return nil
}

// onDeleted 其它实例删除对象后使本地元数据缓存失效.
func (s *Service) onDeleted(msg *message.Message) error {
	m, err := queue.ParseObjectDeleted(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", msg.UUID).Msg("drop malformed deletion")
		return nil
	}

	s.deps.Meta.InvalidateLocal(m.Payload.ObjectID)
	s.logger.Debug().Str("object_id", m.Payload.ObjectID).Msg("metadata invalidated by peer")

	return nil
}

// Sweep 让超过等待时间的 pending 上传以 timeout 失败，返回处理的数量.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	pending, err := s.deps.Tracker.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending uploads: %w", err)
	}

	deadline := s.now().Add(-s.cfg.PendingTimeoutDuration())
	n := 0

	var errs []error

	for _, st := range pending {
		if st.CreatedAt.After(deadline) {
			continue
		}

		if err := s.fail(st.PendingID, ReasonTimeout); err != nil {
			errs = append(errs, err)
			continue
		}

		n++
	}

	if n > 0 {
		s.logger.Info().Int("count", n).Msg("timed out pending uploads")
	}

	return n, errors.Join(errs...)
}
