package dto

// FileUploadResponse 附件上传响应
type FileUploadResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// FileDeleteRequest 附件删除请求
type FileDeleteRequest struct {
	URL string `json:"url" binding:"required"`
}
