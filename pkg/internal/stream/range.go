package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yeisme/fastlink/pkg/apperr"
)

// Range 闭区间 [Start, End]. 空对象的完整区间为 {0, -1}.
type Range struct {
	Start int64
	End   int64
}

// Length 区间字节数.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ContentRange 返回 Content-Range 头的值.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedRange 416 响应使用的 Content-Range.
func UnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// FullRange 整个对象.
func FullRange(size int64) Range {
	return Range{Start: 0, End: size - 1}
}

// ParseRange 解析单区间 Range 头.
// 返回 partial=false 表示没有 Range 头，应返回 200 全量.
// 语法错误、多区间、起点越界都返回 RangeNotSatisfiable；终点越界时截断到 size-1.
func ParseRange(header string, size int64) (Range, bool, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return FullRange(size), false, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return Range{}, true, errUnsatisfiable("unsupported range unit")
	}

	spec = strings.TrimSpace(spec)
	if strings.Contains(spec, ",") {
		return Range{}, true, errUnsatisfiable("multiple ranges are not supported")
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return Range{}, true, errUnsatisfiable("malformed range")
	}

	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if size <= 0 {
		return Range{}, true, errUnsatisfiable("empty object")
	}

	// bytes=-N 取最后 N 个字节
	if startStr == "" {
		n, err := parseOffset(endStr)
		if err != nil || n == 0 {
			return Range{}, true, errUnsatisfiable("malformed suffix range")
		}

		return Range{Start: max(size-n, 0), End: size - 1}, true, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return Range{}, true, errUnsatisfiable("malformed range start")
	}

	if start >= size {
		return Range{}, true, errUnsatisfiable("range start beyond object size")
	}

	end := size - 1

	if endStr != "" {
		e, err := parseOffset(endStr)
		if err != nil {
			return Range{}, true, errUnsatisfiable("malformed range end")
		}

		if e < start {
			return Range{}, true, errUnsatisfiable("range end before start")
		}

		end = min(e, size-1)
	}

	return Range{Start: start, End: end}, true, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}

	return strconv.ParseInt(s, 10, 64)
}

func errUnsatisfiable(msg string) error {
	return apperr.New(apperr.KindRangeNotSatisfiable, msg)
}
