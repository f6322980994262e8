package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/fastlink/pkg/internal/model"
	"github.com/yeisme/fastlink/pkg/internal/stream"
)

// DownloadRequest 一次下载请求.
type DownloadRequest struct {
	ObjectID    string
	Code        string
	Range       string
	IfNoneMatch string
	Head        bool
}

// entityHeaders 下载成功时设置、失败时需要撤销的头.
var entityHeaders = []string{
	"Content-Type", "Content-Disposition", "ETag", "Last-Modified", "Cache-Control",
	"X-Content-Type-Options", "Accept-Ranges",
}

// Download 授权、设置实体头并流式写出对象.
//
// 返回的错误若不包含 stream.ErrCommitted，则尚未写出任何内容，调用方应写错误体.
func (s *Service) Download(ctx context.Context, w http.ResponseWriter, req DownloadRequest) (int64, error) {
	if req.ObjectID == "" || req.Code == "" {
		return 0, errMissingParams
	}

	rec, err := s.Authorizer.Verify(ctx, req.ObjectID, req.Code)
	if err != nil {
		return 0, err
	}

	rule := s.Policy.Lookup(rec.FileName)
	etag := ETag(rec)

	h := w.Header()
	h.Set("Content-Type", contentType(rec))
	h.Set("Content-Disposition", disposition(rule.Attachment, rec.FileName))
	h.Set("ETag", etag)
	h.Set("Last-Modified", rec.CreatedAt.UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", rule.CacheControl())
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Accept-Ranges", "bytes")

	if etagMatches(req.IfNoneMatch, etag) {
		h.Del("Content-Type")
		w.WriteHeader(http.StatusNotModified)

		return 0, nil
	}

	n, err := s.Engine.Serve(ctx, w, stream.Request{
		Locator:     rec.Locator,
		Size:        rec.Size,
		RangeHeader: req.Range,
		HeadOnly:    req.Head,
	})

	committed := err == nil || errors.Is(err, stream.ErrCommitted)
	if !committed {
		for _, k := range entityHeaders {
			h.Del(k)
		}

		return n, err
	}

	// 头已写出即计数，传输中途断开的成功响应同样算一次下载
	if !req.Head && countable(req.Range) {
		s.Authorizer.Count(rec.ObjectID)
	}

	return n, err
}

// countable 只有从头开始的请求计为一次下载，播放器的后续区间请求不重复计数.
func countable(rangeHeader string) bool {
	r := strings.TrimSpace(rangeHeader)
	return r == "" || strings.HasPrefix(r, "bytes=0-")
}

// ETag 由 object id、大小与创建时间派生，内容不可变所以是强校验值.
func ETag(rec *model.ObjectRecord) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%s|%d|%d", rec.ObjectID, rec.Size, rec.CreatedAt.UnixNano()))
	return fmt.Sprintf(`"%016x"`, sum)
}

func contentType(rec *model.ObjectRecord) string {
	if rec.Extension != "" {
		if t := mime.TypeByExtension("." + rec.Extension); t != "" {
			return t
		}
	}

	if rec.MimeType != "" {
		return rec.MimeType
	}

	return "application/octet-stream"
}

// disposition inline 或 attachment，同时给出 ASCII 回退名与 RFC 5987 编码名.
func disposition(attachment bool, name string) string {
	kind := "inline"
	if attachment {
		kind = "attachment"
	}

	if name == "" {
		return kind
	}

	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}

		return r
	}, name)

	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`, kind, fallback, url.PathEscape(name))
}

func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}

	for _, cand := range strings.Split(ifNoneMatch, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == etag {
			return true
		}
	}

	return false
}
