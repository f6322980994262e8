package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/internal/ingest"
	"github.com/yeisme/fastlink/pkg/internal/types"
	"github.com/yeisme/fastlink/pkg/middleware"
	"github.com/yeisme/fastlink/pkg/rule"
)

// DeleteFile DELETE /admin/api/files/:id.
//
//	@Summary	删除文件
//	@Tags		管理
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"对象 ID"
//	@Success	200	{object}	map[string]string
//	@Failure	404	{object}	apperr.Envelope
//	@Router		/admin/api/files/{id} [delete]
func (h *Handlers) DeleteFile(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": types.StatusSuccess})
}

// ListFiles GET /admin/api/files.
//
//	@Summary	文件列表
//	@Tags		管理
//	@Produce	json
//	@Security	BearerAuth
//	@Param		page			query		int		false	"页码"
//	@Param		size			query		int		false	"每页数量"
//	@Param		extension		query		string	false	"扩展名"
//	@Param		include_deleted	query		bool	false	"包含已删除"
//	@Success	200				{object}	types.Response[types.ListFilesResponse]
//	@Router		/admin/api/files [get]
func (h *Handlers) ListFiles(c *gin.Context) {
	var q types.ListFilesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apperr.Abort(c, http.StatusBadRequest, "invalid query")
		return
	}

	if err := rule.ValidateStruct(q); err != nil {
		apperr.Abort(c, http.StatusBadRequest, "invalid query")
		return
	}

	resp, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.OK(resp))
}

// CreateUpload POST /admin/api/uploads，立即返回 202 与 pending id.
//
//	@Summary	提交上传
//	@Tags		管理
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		body	body		types.CreateUploadRequest	true	"暂存对象"
//	@Success	202		{object}	types.UploadAccepted
//	@Failure	400		{object}	apperr.Envelope
//	@Failure	503		{object}	apperr.Envelope
//	@Router		/admin/api/uploads [post]
func (h *Handlers) CreateUpload(c *gin.Context) {
	if h.ingest == nil {
		apperr.Write(c, apperr.ErrUpstreamUnavailable)
		return
	}

	var req types.CreateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.ingest.Enqueue(c.Request.Context(), ingest.UploadRequest{
		FileName: req.FileName,
		Size:     req.Size,
		Locator:  req.Locator,
		MimeType: req.MimeType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, types.UploadAccepted{PendingID: st.PendingID, State: string(st.State)})
}

// UploadStatus GET /admin/api/uploads/:pending_id.
//
//	@Summary	上传状态
//	@Tags		管理
//	@Produce	json
//	@Security	BearerAuth
//	@Param		pending_id	path		string	true	"pending id"
//	@Success	200			{object}	types.UploadStatus
//	@Failure	404			{object}	apperr.Envelope
//	@Router		/admin/api/uploads/{pending_id} [get]
func (h *Handlers) UploadStatus(c *gin.Context) {
	if h.ingest == nil {
		apperr.Write(c, apperr.ErrUpstreamUnavailable)
		return
	}

	st, err := h.ingest.Status(c.Request.Context(), c.Param("pending_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	out := types.UploadStatus{
		PendingID: st.PendingID,
		State:     string(st.State),
		Reason:    st.Reason,
		FileName:  st.FileName,
		ObjectID:  st.ObjectID,
	}

	if st.State == ingest.StateComplete {
		links := h.svc.LinksFor(st.ObjectID, st.FileName, st.AccessCode)
		out.AccessCode = st.AccessCode
		out.Links = &links
	}

	c.JSON(http.StatusOK, out)
}

// SchedulerJobs GET /admin/api/scheduler/jobs.
//
//	@Summary	定时任务列表
//	@Tags		管理
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	map[string]any
//	@Router		/admin/api/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []any{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}
