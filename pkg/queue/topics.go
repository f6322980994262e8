// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名：fl.<域>.<动作>.
const (
	// 上传接入.
	TopicUploadRequested = "fl.upload.requested" // 上传已受理，等待校验
	TopicUploadCompleted = "fl.upload.completed" // 终态：ObjectRecord 已生成
	TopicUploadFailed    = "fl.upload.failed"    // 终态：上传失败，附原因

	// 对象生命周期.
	TopicObjectDeleted  = "fl.object.deleted"  // 对象被软删除，各 origin 失效本地元数据缓存
	TopicObjectAccessed = "fl.object.accessed" // 下载计数落库后的汇总通知（可选）
)

// UploadTopics 上传相关主题.
var UploadTopics = []string{TopicUploadRequested, TopicUploadCompleted, TopicUploadFailed}

// ObjectTopics 对象相关主题.
var ObjectTopics = []string{TopicObjectDeleted, TopicObjectAccessed}

// AllTopics 返回全部主题.
func AllTopics() []string {
	out := make([]string, 0, len(UploadTopics)+len(ObjectTopics))
	out = append(out, UploadTopics...)

	return append(out, ObjectTopics...)
}
