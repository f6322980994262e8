package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/policy"
)

func testTable() *policy.Table {
	return policy.NewTable(configs.PolicyConfig{
		Version:    "t1",
		MediaTTL:   86400,
		MediaSWR:   86400,
		DefaultTTL: 300,
		ExtraVideo: []string{".TS"},
	})
}

func TestClassify(t *testing.T) {
	tbl := testTable()

	cases := map[string]policy.Class{
		"holiday.JPG":          policy.ClassImage,
		"/dl/abc/clip.mp4":     policy.ClassVideo,
		"stream.ts":            policy.ClassVideo,
		"index.html":           policy.ClassNonCacheable,
		"app.js":               policy.ClassNonCacheable,
		"logo.svg":             policy.ClassNonCacheable,
		"report.pdf":           policy.ClassDefault,
		"/dl/3f9a1c0b7d2e4a6f": policy.ClassDefault,
		"":                     policy.ClassDefault,
	}

	for name, want := range cases {
		assert.Equal(t, want, tbl.Classify(name), name)
	}

	assert.Equal(t, policy.ClassImage, tbl.ClassifyExt("png"))
	assert.Equal(t, policy.ClassImage, tbl.ClassifyExt(".PNG"))
	assert.Equal(t, "t1", tbl.Version())
}

func TestCacheControl(t *testing.T) {
	tbl := testTable()

	assert.Equal(t, "public, max-age=86400, stale-while-revalidate=86400, immutable",
		tbl.RuleFor(policy.ClassImage).CacheControl())
	assert.Equal(t, "public, max-age=300", tbl.RuleFor(policy.ClassDefault).CacheControl())
	assert.Equal(t, "no-store", tbl.RuleFor(policy.ClassNonCacheable).CacheControl())

	short := policy.NewTable(configs.PolicyConfig{Version: "s", MediaTTL: 600, MediaSWR: 60, DefaultTTL: 0})
	assert.Equal(t, "public, max-age=600, stale-while-revalidate=60", short.RuleFor(policy.ClassVideo).CacheControl())
	assert.False(t, short.RuleFor(policy.ClassDefault).Cacheable)
}

func TestNonCacheableIsAttachment(t *testing.T) {
	tbl := testTable()

	assert.True(t, tbl.Lookup("run.exe").Attachment)
	assert.False(t, tbl.Lookup("cat.gif").Attachment)
	assert.False(t, tbl.Lookup("run.exe").Cacheable)
}
