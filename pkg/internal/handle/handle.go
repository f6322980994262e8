// Package handle 提供 origin 的 HTTP 处理器.
package handle

import (
	"github.com/yeisme/fastlink/pkg/internal/ingest"
	"github.com/yeisme/fastlink/pkg/internal/service"
)

// Handlers origin 处理器集合，由 app 注入依赖.
type Handlers struct {
	svc    *service.Service
	ingest *ingest.Service
}

// New 创建处理器. ing 为空时上传相关接口返回 503.
func New(svc *service.Service, ing *ingest.Service) *Handlers {
	return &Handlers{svc: svc, ingest: ing}
}
