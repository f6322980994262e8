package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/internal/service"
	"github.com/yeisme/fastlink/pkg/internal/stream"
	"github.com/yeisme/fastlink/pkg/internal/types"
	"github.com/yeisme/fastlink/pkg/log"
)

// Download GET/HEAD /dl/:id[/*filename]?code=.
// 尾部的文件名只用于让 URL 带上扩展名，不参与授权.
//
//	@Summary		下载文件
//	@Description	支持单段 Range 与 If-None-Match；HEAD 只返回响应头
//	@Tags			下载
//	@Produce		octet-stream
//	@Param			id		path		string	true	"对象 ID"
//	@Param			code	query		string	true	"访问码"
//	@Param			Range	header		string	false	"bytes=start-end"
//	@Success		200		{file}		binary
//	@Success		206		{file}		binary
//	@Failure		400		{object}	apperr.Envelope
//	@Failure		404		{object}	apperr.Envelope
//	@Failure		410		{object}	apperr.Envelope
//	@Failure		416		{object}	apperr.Envelope
//	@Failure		503		{object}	apperr.Envelope
//	@Router			/dl/{id} [get]
func (h *Handlers) Download(c *gin.Context) {
	var q types.DownloadQuery
	_ = c.ShouldBindQuery(&q)

	req := service.DownloadRequest{
		ObjectID:    c.Param("id"),
		Code:        q.Code,
		Range:       c.GetHeader("Range"),
		IfNoneMatch: c.GetHeader("If-None-Match"),
		Head:        c.Request.Method == http.MethodHead,
	}

	n, err := h.svc.Download(c.Request.Context(), c.Writer, req)
	if err == nil {
		return
	}

	if errors.Is(err, stream.ErrCommitted) {
		// 响应头已写出，Content-Length 与实际长度不一致，客户端能发现截断
		log.Logger().Warn().Err(err).Str("object_id", req.ObjectID).Int64("written", n).Msg("download truncated")
		c.Abort()

		return
	}

	writeError(c, err)
}

// Info GET /file/:id/info?code=.
//
//	@Summary	文件信息
//	@Tags		下载
//	@Produce	json
//	@Param		id		path		string	true	"对象 ID"
//	@Param		code	query		string	true	"访问码"
//	@Success	200		{object}	types.Response[types.FileInfo]
//	@Failure	404		{object}	apperr.Envelope
//	@Failure	410		{object}	apperr.Envelope
//	@Router		/file/{id}/info [get]
func (h *Handlers) Info(c *gin.Context) {
	var q types.DownloadQuery
	_ = c.ShouldBindQuery(&q)

	info, err := h.svc.Info(c.Request.Context(), c.Param("id"), q.Code)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.OK(info))
}

// writeError 写出统一错误体. 缺少参数时给出具体原因，其余只给类别消息.
func writeError(c *gin.Context, err error) {
	if service.IsMissingParams(err) {
		apperr.Abort(c, http.StatusBadRequest, "missing file id or code")
		return
	}

	if status := apperr.Status(err); status >= http.StatusInternalServerError {
		log.Logger().Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	apperr.Write(c, err)
}
