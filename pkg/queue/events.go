package queue

import "github.com/ThreeDotsLabs/watermill/message"

// Publish 构造消息并发布到 topic.
func Publish[T any](pub message.Publisher, topic string, payload T, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}

// PublishUploadRequested 发布 fl.upload.requested.
func PublishUploadRequested(pub message.Publisher, payload UploadRequestedPayload, opts ...func(*EventHeader)) error {
	opts = append([]func(*EventHeader){WithKey(payload.PendingID + ":requested")}, opts...)

	return Publish(pub, TopicUploadRequested, payload, opts...)
}

// PublishUploadCompleted 发布 fl.upload.completed.
func PublishUploadCompleted(pub message.Publisher, payload UploadCompletedPayload, opts ...func(*EventHeader)) error {
	opts = append([]func(*EventHeader){WithKey(payload.PendingID + ":terminal")}, opts...)

	return Publish(pub, TopicUploadCompleted, payload, opts...)
}

// PublishUploadFailed 发布 fl.upload.failed. 与 completed 共用幂等键，同一上传只保留一个终态.
func PublishUploadFailed(pub message.Publisher, payload UploadFailedPayload, opts ...func(*EventHeader)) error {
	opts = append([]func(*EventHeader){WithKey(payload.PendingID + ":terminal")}, opts...)

	return Publish(pub, TopicUploadFailed, payload, opts...)
}

// PublishObjectDeleted 发布 fl.object.deleted.
func PublishObjectDeleted(pub message.Publisher, payload ObjectDeletedPayload, opts ...func(*EventHeader)) error {
	return Publish(pub, TopicObjectDeleted, payload, opts...)
}

// PublishObjectAccessed 发布 fl.object.accessed.
func PublishObjectAccessed(pub message.Publisher, payload ObjectAccessedPayload, opts ...func(*EventHeader)) error {
	return Publish(pub, TopicObjectAccessed, payload, opts...)
}

// ParseUploadRequested 解析 fl.upload.requested.
func ParseUploadRequested(msg *message.Message) (Message[UploadRequestedPayload], error) {
	return ParseWatermillMessage[UploadRequestedPayload](msg)
}

// ParseUploadCompleted 解析 fl.upload.completed.
func ParseUploadCompleted(msg *message.Message) (Message[UploadCompletedPayload], error) {
	return ParseWatermillMessage[UploadCompletedPayload](msg)
}

// ParseUploadFailed 解析 fl.upload.failed.
func ParseUploadFailed(msg *message.Message) (Message[UploadFailedPayload], error) {
	return ParseWatermillMessage[UploadFailedPayload](msg)
}

// ParseObjectDeleted 解析 fl.object.deleted.
func ParseObjectDeleted(msg *message.Message) (Message[ObjectDeletedPayload], error) {
	return ParseWatermillMessage[ObjectDeletedPayload](msg)
}

// ParseObjectAccessed 解析 fl.object.accessed.
func ParseObjectAccessed(msg *message.Message) (Message[ObjectAccessedPayload], error) {
	return ParseWatermillMessage[ObjectAccessedPayload](msg)
}
