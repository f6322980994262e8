// Package queue 定义上传接入与对象生命周期事件的消息封装.
//
// 所有消息统一为 Message[Payload] = Header + Payload，使用 bytedance/sonic 进行 JSON 编解码.
// 主题常量见 topics.go，负载结构体见 payloads.go，发布/解析的快捷函数见 events.go.
//
// 消息信封 JSON 结构
//
//	{
//	  "header": {
//	    "topic": "fl.upload.requested",
//	    "key": "01J9Z...:requested",
//	    "trace_id": "optional-trace-id",
//	    "producer": "fastlink-origin",
//	    "occurred_at": "2026-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { ... }
//	}
//
// 发布/订阅示例
//
//	msg, _ := queue.NewWatermillMessage(queue.TopicUploadRequested, payload,
//		queue.WithKey(payload.PendingID+":requested"),
//		queue.WithProducer("fastlink-origin"),
//	)
//	_ = client.Publish(ctx, queue.TopicUploadRequested, msg)
//
//	ch, _ := client.Subscribe(ctx, queue.TopicUploadRequested)
//	for m := range ch {
//		env, _ := queue.ParseUploadRequested(m)
//		// env.Header / env.Payload
//		m.Ack()
//	}
//
// Header.key 非空时作为消息 UUID，JetStream 开启 track_msg_id 后可据此去重.
package queue

import (
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
)

const (
	PayloadVersionV1 string = "v1"
)

// NewEventHeader 便捷创建事件头.
func NewEventHeader(topic string, opts ...func(*EventHeader)) EventHeader {
	hdr := EventHeader{
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithKey 设置幂等键.
func WithKey(key string) func(*EventHeader) { return func(h *EventHeader) { h.Key = key } }

// WithTraceID 设置 TraceID.
func WithTraceID(id string) func(*EventHeader) { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) func(*EventHeader) { return func(h *EventHeader) { h.Producer = p } }

// Encode 将消息封装为 JSON 字节切片.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 字节解码为消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造一个 watermill 消息，设置 ID 与元数据.
func NewWatermillMessage[T any](topic string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)
	env := Message[T]{Header: header, Payload: payload}

	data, err := Encode(env)
	if err != nil {
		return nil, err
	}

	id := header.Key
	if id == "" {
		id = watermill.NewUUID()
	}

	msg := message.NewMessage(id, data)
	msg.Metadata.Set("topic", topic)

	if header.TraceID != "" {
		msg.Metadata.Set("trace_id", header.TraceID)
	}

	if header.Producer != "" {
		msg.Metadata.Set("producer", header.Producer)
	}

	msg.Metadata.Set("occurred_at", header.OccurredAt.Format(time.RFC3339Nano))
	msg.Metadata.Set("version", header.Version)

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}
