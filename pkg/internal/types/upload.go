package types

// CreateUploadRequest POST /admin/api/uploads.
type CreateUploadRequest struct {
	FileName string `json:"file_name" rule:"required,max=1024"`
	Size     int64  `json:"size"      rule:"min=0"`
	Locator  string `json:"locator"   rule:"required,max=1024"`
	MimeType string `json:"mime_type" rule:"omitempty,max=255"`
}

// UploadAccepted 受理结果.
type UploadAccepted struct {
	PendingID string `json:"pending_id"`
	State     string `json:"state"`
}

// UploadStatus 上传状态. 访问码与链接只在 complete 时返回.
type UploadStatus struct {
	PendingID  string     `json:"pending_id"`
	State      string     `json:"state"`
	Reason     string     `json:"reason,omitempty"`
	FileName   string     `json:"file_name,omitempty"`
	ObjectID   string     `json:"object_id,omitempty"`
	AccessCode string     `json:"access_code,omitempty"`
	Links      *FileLinks `json:"links,omitempty"`
}
