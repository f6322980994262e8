package model

import (
	"time"
)

// ObjectRecord 一个可下载对象的元数据.
// 删除是软删除：Deleted 置位后记录仍然可查，下载返回 410 而不是 404.
// 这里不用 gorm.DeletedAt，否则默认查询会把已删除记录过滤成“不存在”.
type ObjectRecord struct {
	ObjectID string `gorm:"primaryKey;size:32"     json:"object_id"`
	// AccessCode 高熵访问码，对象内唯一，不对外返回
	AccessCode string `gorm:"size:64;uniqueIndex" json:"-"`
	FileName   string `gorm:"size:512"            json:"file_name"`
	Size       int64  `json:"size"`
	// Extension 小写、不带点
	Extension string `gorm:"size:32;index" json:"extension"`
	MimeType  string `gorm:"size:255"      json:"mime_type"`
	// Locator 对象存储中的位置（S3 key），不对外返回
	Locator          string     `gorm:"size:1024" json:"-"`
	DownloadCount    int64      `gorm:"default:0" json:"download_count"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at,omitempty"`
	Deleted          bool       `gorm:"index;default:false" json:"deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 表名.
func (ObjectRecord) TableName() string {
	return "object_records"
}

// CachedObject 写入共享缓存的记录快照，包含访问码与位置等内部字段.
// ObjectRecord 的 json 标签会隐藏这些字段，所以缓存单独使用这个类型.
type CachedObject struct {
	ObjectID         string     `json:"object_id"`
	AccessCode       string     `json:"access_code"`
	FileName         string     `json:"file_name"`
	Size             int64      `json:"size"`
	Extension        string     `json:"extension"`
	MimeType         string     `json:"mime_type"`
	Locator          string     `json:"locator"`
	DownloadCount    int64      `json:"download_count"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at,omitempty"`
	Deleted          bool       `json:"deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Snapshot 转换为缓存快照.
func (r *ObjectRecord) Snapshot() CachedObject {
	return CachedObject(*r)
}

// Record 从缓存快照还原记录.
func (c CachedObject) Record() *ObjectRecord {
	r := ObjectRecord(c)
	return &r
}

// AllModels 需要迁移的模型.
func AllModels() []any {
	return []any{&ObjectRecord{}}
}
