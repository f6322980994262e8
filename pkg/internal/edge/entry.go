package edge

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// 缓存状态，写在 X-Cache 头里.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheBypass = "BYPASS"
)

const keyBuilderGrow = 96

// Entry 一条完整响应. 只保存 200 的完整响应.
type Entry struct {
	Status   int                 `json:"s"`
	Header   map[string][]string `json:"h,omitempty"`
	Body     []byte              `json:"b,omitempty"`
	ETag     string              `json:"e,omitempty"`
	Class    string              `json:"c,omitempty"`
	StoredAt int64               `json:"t"` // unix nano，用于 Age
}

// Age 条目已存在的秒数.
func (e *Entry) Age(now time.Time) int64 {
	return int64(now.Sub(time.Unix(0, e.StoredAt)) / time.Second)
}

// Key 缓存键：代际标签 + 策略表版本 + 路径 + 原始查询串.
// HEAD 与 GET 共用同一个键，HEAD 命中时只写出头.
func Key(generation, policyVersion, path, rawQuery string) string {
	var b strings.Builder

	b.Grow(keyBuilderGrow)
	b.WriteString(generation)
	b.WriteByte('|')
	b.WriteString(policyVersion)
	b.WriteByte('|')
	b.WriteString(http.MethodGet)
	b.WriteByte(':')
	b.WriteString(path)

	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}

	return fmt.Sprintf("%s:%x", generation, xxhash.Sum64String(b.String()))
}

// etagMatches If-None-Match 的弱比较.
func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" || etag == "" {
		return false
	}

	want := strings.TrimPrefix(etag, "W/")

	for _, cand := range strings.Split(ifNoneMatch, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == want {
			return true
		}
	}

	return false
}

// storableTTL 解析 origin 的 Cache-Control. 返回 (上限, 是否允许缓存)，上限 0 表示没有 max-age.
func storableTTL(h http.Header) (time.Duration, bool) {
	cc := strings.ToLower(h.Get("Cache-Control"))
	if cc == "" {
		return 0, true
	}

	if strings.Contains(cc, "no-store") || strings.Contains(cc, "private") {
		return 0, false
	}

	for _, dir := range strings.Split(cc, ",") {
		v, ok := strings.CutPrefix(strings.TrimSpace(dir), "max-age=")
		if !ok {
			continue
		}

		d, err := time.ParseDuration(strings.TrimSpace(v) + "s")
		if err != nil {
			continue
		}

		if d <= 0 {
			return 0, false
		}

		return d, true
	}

	return 0, true
}
