package ingest

import (
	"path"
	"strings"
	"unicode/utf8"
)

// MaxFileNameBytes 文件名最大字节数.
const MaxFileNameBytes = 255

var unsafeNameChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFileName 替换文件系统不允许的字符，超长时截断主名并保留扩展名.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}

		return r
	}, name)
	name = unsafeNameChars.Replace(name)

	if name == "" || name == "." || name == ".." {
		return "file"
	}

	if len(name) <= MaxFileNameBytes {
		return name
	}

	ext := path.Ext(name)
	if len(ext) >= MaxFileNameBytes/2 {
		ext = ""
	}

	base := strings.TrimSuffix(name, ext)
	base = truncateUTF8(base, MaxFileNameBytes-len(ext))

	return base + ext
}

// truncateUTF8 截到不超过 n 字节，不切断多字节字符.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}
