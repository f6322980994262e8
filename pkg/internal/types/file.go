package types

import "time"

// DownloadQuery /dl/:id 与 /file/:id/info 的查询参数.
type DownloadQuery struct {
	Code string `form:"code"`
}

// FileLinks 下载链接.
type FileLinks struct {
	Origin string `json:"origin"`
	Edge   string `json:"edge,omitempty"`
}

// FileInfo 对外的文件信息，不含访问码与存储位置.
type FileInfo struct {
	ObjectID      string    `json:"object_id"`
	FileName      string    `json:"file_name"`
	Size          int64     `json:"size"`
	SizeHuman     string    `json:"size_human"`
	Extension     string    `json:"extension"`
	MimeType      string    `json:"mime_type"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
	Links         FileLinks `json:"links"`
}

// AdminFile 管理接口里的文件条目.
type AdminFile struct {
	FileInfo

	Deleted          bool       `json:"deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at,omitempty"`
}

// ListFilesQuery 管理接口列表参数.
type ListFilesQuery struct {
	Page           int    `form:"page"            rule:"omitempty,min=1"`
	Size           int    `form:"size"            rule:"omitempty,min=1,max=200"`
	Extension      string `form:"extension"       rule:"omitempty,max=32"`
	IncludeDeleted bool   `form:"include_deleted"`
}

// ListFilesResponse 管理接口列表结果.
type ListFilesResponse struct {
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Files []AdminFile `json:"files"`
}
