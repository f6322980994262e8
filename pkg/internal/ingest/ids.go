package ingest

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid"
)

const (
	// ObjectIDLength 对象 ID 长度.
	ObjectIDLength = 16
	// AccessCodeLength 访问码长度.
	AccessCodeLength = 32

	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewPendingID 生成按时间排序的上传 ID.
func NewPendingID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewObjectID 生成 16 位对象 ID.
func NewObjectID() (string, error) {
	return randomString(ObjectIDLength)
}

// NewAccessCode 生成 32 位访问码.
func NewAccessCode() (string, error) {
	return randomString(AccessCodeLength)
}

// randomString 无偏地从 idAlphabet 取 n 个字符.
func randomString(n int) (string, error) {
	const limit = 256 - 256%len(idAlphabet)

	var b strings.Builder

	b.Grow(n)

	buf := make([]byte, n*2)

	for b.Len() < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}

		for _, c := range buf {
			if int(c) >= limit {
				continue
			}

			b.WriteByte(idAlphabet[int(c)%len(idAlphabet)])

			if b.Len() == n {
				break
			}
		}
	}

	return b.String(), nil
}
