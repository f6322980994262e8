package apperr

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// TimestampLayout 错误体时间戳格式，UTC 毫秒精度.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope 所有非 2xx/3xx 响应的错误体.
type Envelope struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Timestamp string `json:"timestamp"`
}

// NewEnvelope 构造错误体.
func NewEnvelope(status int, message string) Envelope {
	return Envelope{
		Error:     true,
		Message:   message,
		Code:      status,
		Timestamp: time.Now().UTC().Format(TimestampLayout),
	}
}

// Body 返回编码后的错误体，供非 gin 场景直接写出.
func (e Envelope) Body() []byte {
	b, err := sonic.Marshal(e)
	if err != nil {
		return []byte(`{"error":true,"message":"Internal server error","code":500}`)
	}

	return b
}

// Write 按 err 的类别写出错误体并终止后续 handler.
func Write(c *gin.Context, err error) {
	status := Status(err)
	Abort(c, status, Public(err))
}

// Abort 直接以 status 与 message 写出错误体.
func Abort(c *gin.Context, status int, message string) {
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, NewEnvelope(status, message))
}
