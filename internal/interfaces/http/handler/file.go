package handler

import (
	"github.com/gin-gonic/gin"

	appfile "z-chat-ai-api/internal/application/file"
	"z-chat-ai-api/internal/interfaces/http/dto"
	"z-chat-ai-api/pkg/errors"
	"z-chat-ai-api/pkg/logger"
)

// FileHandler 附件处理器
type FileHandler struct {
	files *appfile.Service
}

// NewFileHandler 创建附件处理器
func NewFileHandler(files *appfile.Service) *FileHandler {
	return &FileHandler{files: files}
}

// Upload 上传附件
// @Summary 上传附件到对象存储并登记文件记录
// @Tags File
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "附件内容"
// @Success 201 {object} dto.Response[dto.FileUploadResponse]
// @Failure 400 {object} dto.Response
// @Failure 413 {object} dto.Response
// @Router /v1/files/upload [post]
func (h *FileHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		dto.BadRequest(c, "missing file field: "+err.Error())
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		dto.Error(c, errors.Wrap(err, errors.CodeInvalidParam, "failed to read upload"))
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	record, err := h.files.Upload(ctx, fileHeader.Filename, contentType, fileHeader.Size, src)
	if err != nil {
		logger.Error(ctx, "failed to upload attachment", err, "name", fileHeader.Filename)
		dto.Error(c, err)
		return
	}

	dto.Created(c, dto.FileUploadResponse{
		ID:          record.ID,
		URL:         record.URL,
		Pathname:    record.Name,
		ContentType: record.MimeType,
	})
}

// Delete 删除附件
// @Summary 按存储 URL 删除附件，幂等
// @Tags File
// @Accept json
// @Produce json
// @Param body body dto.FileDeleteRequest true "附件 URL"
// @Success 200 {object} dto.Response
// @Router /v1/files [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.FileDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.files.Delete(ctx, req.URL); err != nil {
		logger.Error(ctx, "failed to delete attachment", err, "url", req.URL)
		dto.Error(c, err)
		return
	}

	dto.Success(c, gin.H{"success": true})
}
