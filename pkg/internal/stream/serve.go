package stream

import (
	"context"
	"net/http"
	"strconv"
)

// Request 一次下载的读取参数.
type Request struct {
	Locator     string
	Size        int64
	RangeHeader string
	HeadOnly    bool
}

// Serve 解析 Range、拉取第一个分块后写出状态码与长度相关的头，再写出正文.
// 其余响应头（Content-Type、ETag 等）由调用方在调用前设置.
//
// 返回的错误中：不含 ErrCommitted 的错误发生在写出任何内容之前，调用方应返回错误体；
// 416 时已设置 Content-Range: bytes */size.
func (e *Engine) Serve(ctx context.Context, w http.ResponseWriter, req Request) (int64, error) {
	rng, partial, err := ParseRange(req.RangeHeader, req.Size)
	if err != nil {
		w.Header().Set("Content-Range", UnsatisfiedRange(req.Size))
		return 0, err
	}

	status := http.StatusOK
	if partial {
		status = http.StatusPartialContent
	}

	if req.HeadOnly {
		writeHeaders(w, status, rng, req.Size, partial)
		return 0, nil
	}

	body, err := e.Open(ctx, req.Locator, rng)
	if err != nil {
		return 0, err
	}

	writeHeaders(w, status, rng, req.Size, partial)

	return body.WriteTo(w)
}

func writeHeaders(w http.ResponseWriter, status int, rng Range, size int64, partial bool) {
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(max(rng.Length(), 0), 10))

	if partial {
		h.Set("Content-Range", rng.ContentRange(size))
	}

	w.WriteHeader(status)
}
