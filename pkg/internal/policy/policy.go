// Package policy 按扩展名给内容分类，并给出统一的缓存策略.
// origin 用它生成 Cache-Control 与 Content-Disposition，edge 用它决定是否缓存以及缓存多久.
package policy

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/yeisme/fastlink/pkg/configs"
)

// Class 内容类别.
type Class int

const (
	ClassDefault Class = iota
	ClassImage
	ClassVideo
	ClassNonCacheable
)

func (c Class) String() string {
	switch c {
	case ClassImage:
		return "image"
	case ClassVideo:
		return "video"
	case ClassNonCacheable:
		return "non_cacheable"
	default:
		return "default"
	}
}

var builtin = map[Class][]string{
	ClassImage: {"jpg", "jpeg", "png", "gif", "bmp", "webp", "avif", "ico", "tif", "tiff"},
	ClassVideo: {"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm", "m4v", "mpg", "mpeg", "3gp"},
	// 脚本、标记与数据类内容直接在浏览器里执行或解析，不缓存，origin 强制下载
	ClassNonCacheable: {
		"js", "mjs", "cjs", "html", "htm", "xhtml", "svg", "xml", "json", "css", "php",
		"exe", "bat", "cmd", "com", "msi", "sh", "ps1", "vbs", "jar", "scr", "pif",
	},
}

// Rule 某一类别的缓存规则.
type Rule struct {
	Class     Class
	Cacheable bool
	TTL       time.Duration
	SWR       time.Duration
	// Attachment 为 true 时 origin 以附件形式下发
	Attachment bool
}

// immutableAfter TTL 超过该值时附加 immutable.
const immutableAfter = time.Hour

// CacheControl 返回该规则对应的 Cache-Control 头.
func (r Rule) CacheControl() string {
	if !r.Cacheable {
		return "no-store"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "public, max-age=%d", int64(r.TTL/time.Second))

	if r.SWR > 0 {
		fmt.Fprintf(&b, ", stale-while-revalidate=%d", int64(r.SWR/time.Second))
	}

	if r.TTL > immutableAfter {
		b.WriteString(", immutable")
	}

	return b.String()
}

// Table 带版本号的扩展名策略表，创建后只读，可并发使用.
type Table struct {
	version string
	classes map[string]Class
	rules   map[Class]Rule
}

// NewTable 使用内置扩展名与配置中的 TTL 构建策略表.
func NewTable(cfg configs.PolicyConfig) *Table {
	t := &Table{
		version: cfg.Version,
		classes: make(map[string]Class, 64),
	}

	for class, exts := range builtin {
		t.add(class, exts)
	}

	t.add(ClassImage, cfg.ExtraImage)
	t.add(ClassVideo, cfg.ExtraVideo)
	t.add(ClassNonCacheable, cfg.ExtraNonCacheable)

	media := time.Duration(cfg.MediaTTL) * time.Second
	swr := time.Duration(cfg.MediaSWR) * time.Second
	short := time.Duration(cfg.DefaultTTL) * time.Second

	t.rules = map[Class]Rule{
		ClassImage:        {Class: ClassImage, Cacheable: media > 0, TTL: media, SWR: swr},
		ClassVideo:        {Class: ClassVideo, Cacheable: media > 0, TTL: media, SWR: swr},
		ClassDefault:      {Class: ClassDefault, Cacheable: short > 0, TTL: short},
		ClassNonCacheable: {Class: ClassNonCacheable, Attachment: true},
	}

	return t
}

func (t *Table) add(class Class, exts []string) {
	for _, e := range exts {
		if e = normalize(e); e != "" {
			t.classes[e] = class
		}
	}
}

// Version 返回策略表版本，edge 会把它写进缓存 key.
func (t *Table) Version() string {
	return t.version
}

// Classify 按文件名或路径的扩展名分类，未知或无扩展名为 ClassDefault.
func (t *Table) Classify(name string) Class {
	return t.ClassifyExt(Ext(name))
}

// ClassifyExt 按裸扩展名分类（"jpg" 或 ".jpg"）.
func (t *Table) ClassifyExt(ext string) Class {
	if c, ok := t.classes[normalize(ext)]; ok {
		return c
	}

	return ClassDefault
}

// Lookup 返回文件名对应的规则.
func (t *Table) Lookup(name string) Rule {
	return t.rules[t.Classify(name)]
}

// RuleFor 返回类别对应的规则.
func (t *Table) RuleFor(c Class) Rule {
	return t.rules[c]
}

// Ext 取出文件名或路径最后一段的扩展名，小写且不带点.
func Ext(name string) string {
	return normalize(path.Ext(path.Base(strings.TrimSpace(name))))
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
