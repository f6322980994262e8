package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/access"
	"github.com/yeisme/fastlink/pkg/internal/metacache"
	"github.com/yeisme/fastlink/pkg/internal/model"
	"github.com/yeisme/fastlink/pkg/internal/policy"
	"github.com/yeisme/fastlink/pkg/internal/stream"
	"github.com/yeisme/fastlink/pkg/internal/types"
	"github.com/yeisme/fastlink/pkg/log"
	"github.com/yeisme/fastlink/pkg/queue"
)

// Links 生成下载链接所需的公开地址.
type Links struct {
	Origin string
	Edge   string
}

// Deps 服务依赖.
type Deps struct {
	Records    *RecordStore
	Meta       *metacache.Cache
	Authorizer *access.Authorizer
	Engine     *stream.Engine
	Policy     *policy.Table
	// Publisher 为空时不发布领域事件
	Publisher message.Publisher
	Events    configs.EventsConfig
	Links     Links
	Producer  string
}

// Service origin 的下载、信息查询与删除.
type Service struct {
	Deps

	logger zerolog.Logger
}

// New 创建服务.
func New(deps Deps) *Service {
	return &Service{Deps: deps, logger: log.Component("service")}
}

// Info 授权后返回文件信息，不计数.
func (s *Service) Info(ctx context.Context, objectID, code string) (types.FileInfo, error) {
	if objectID == "" || code == "" {
		return types.FileInfo{}, errMissingParams
	}

	rec, err := s.Authorizer.Verify(ctx, objectID, code)
	if err != nil {
		return types.FileInfo{}, err
	}

	return s.fileInfo(rec), nil
}

func (s *Service) fileInfo(rec *model.ObjectRecord) types.FileInfo {
	return types.FileInfo{
		ObjectID:      rec.ObjectID,
		FileName:      rec.FileName,
		Size:          rec.Size,
		SizeHuman:     types.FormatSize(rec.Size),
		Extension:     rec.Extension,
		MimeType:      contentType(rec),
		DownloadCount: rec.DownloadCount,
		CreatedAt:     rec.CreatedAt.UTC(),
		Links:         s.LinksFor(rec.ObjectID, rec.FileName, rec.AccessCode),
	}
}

// LinksFor 生成 origin 与 edge 下载链接.
func (s *Service) LinksFor(objectID, fileName, code string) types.FileLinks {
	build := func(base string) string {
		if base == "" {
			return ""
		}

		u := fmt.Sprintf("%s/dl/%s", strings.TrimRight(base, "/"), url.PathEscape(objectID))
		if fileName != "" {
			u += "/" + url.PathEscape(fileName)
		}

		return u + "?code=" + url.QueryEscape(code)
	}

	return types.FileLinks{Origin: build(s.Links.Origin), Edge: build(s.Links.Edge)}
}

// Delete 软删除，同步失效本地与共享元数据缓存后再发布删除事件.
// 共享缓存失效失败时返回 UpstreamUnavailable，删除未被确认，调用方可以重试.
// 重复删除是幂等的，每次成功的删除都会重新发布事件，消费者的失效同样幂等.
func (s *Service) Delete(ctx context.Context, objectID string) error {
	now := time.Now().UTC()

	changed, err := s.Records.SoftDelete(ctx, objectID, now)
	if err != nil {
		return err
	}

	if err := s.Meta.Invalidate(ctx, objectID); err != nil {
		s.logger.Error().Err(err).Str("object_id", objectID).Msg("shared metadata invalidation failed")
		return apperr.Wrap(apperr.KindUpstreamUnavailable, err, "invalidate metadata cache")
	}

	if changed {
		s.logger.Info().Str("object_id", objectID).Msg("object deleted")
	}

	if s.Publisher != nil && s.Events.Enabled && s.Events.Object.Deleted {
		err := queue.PublishObjectDeleted(s.Publisher, queue.ObjectDeletedPayload{ObjectID: objectID, DeletedAt: now},
			queue.WithProducer(s.Producer))
		if err != nil {
			s.logger.Warn().Err(err).Str("object_id", objectID).Msg("publish object deleted failed")
		}
	}

	return nil
}

// List 管理接口列表.
func (s *Service) List(ctx context.Context, q types.ListFilesQuery) (types.ListFilesResponse, error) {
	rows, total, err := s.Records.List(ctx, ListFilter{
		Page:           q.Page,
		Size:           q.Size,
		IncludeDeleted: q.IncludeDeleted,
		Extension:      q.Extension,
	})
	if err != nil {
		return types.ListFilesResponse{}, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "list records")
	}

	files := make([]types.AdminFile, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		files = append(files, types.AdminFile{
			FileInfo:         s.fileInfo(r),
			Deleted:          r.Deleted,
			DeletedAt:        r.DeletedAt,
			LastDownloadedAt: r.LastDownloadedAt,
		})
	}

	page, size := q.Page, q.Size
	if page <= 0 {
		page = 1
	}

	if size <= 0 || size > 200 {
		size = 50
	}

	return types.ListFilesResponse{Total: total, Page: page, Size: size, Files: files}, nil
}

var errMissingParams = apperr.New(apperr.KindBadRequest, "missing file id or code")

// IsMissingParams 是否为缺少 id 或访问码.
func IsMissingParams(err error) bool {
	return errors.Is(err, errMissingParams)
}
