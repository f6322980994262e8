package queue

import (
	"time"

	"github.com/yeisme/fastlink/pkg/internal/model"
)

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于转储后定位来源.
	Topic string `json:"topic"`
	// Key 幂等键，通常为 <pending_id>:<阶段>.
	Key string `json:"key,omitempty"`
	// TraceID 分布式追踪 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// UploadRequestedPayload 上传已受理. Locator 指向已暂存到对象存储的数据.
type UploadRequestedPayload struct {
	PendingID   string    `json:"pending_id"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	Locator     string    `json:"locator"`
	MimeType    string    `json:"mime_type,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// UploadCompletedPayload 上传成功，携带完整记录（含访问码）.
type UploadCompletedPayload struct {
	PendingID string             `json:"pending_id"`
	Record    model.CachedObject `json:"record"`
}

// UploadFailedPayload 上传失败.
type UploadFailedPayload struct {
	PendingID string `json:"pending_id"`
	Reason    string `json:"reason"`
}

// ObjectDeletedPayload 对象被软删除.
type ObjectDeletedPayload struct {
	ObjectID  string    `json:"object_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ObjectAccessedPayload 一次计数刷新中某个对象新增的下载次数.
type ObjectAccessedPayload struct {
	ObjectID string    `json:"object_id"`
	Count    int64     `json:"count"`
	At       time.Time `json:"at"`
}
