// Package dto 定义 HTTP 请求与响应结构
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"z-chat-ai-api/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    any              `json:"data,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Code:    errors.CodeSuccess,
		Message: "created",
		Data:    data,
	})
}

// Error 错误响应，按错误码映射 HTTP 状态
func Error(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	c.JSON(appErr.HTTPStatus, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    errors.CodeInvalidParam,
		Message: "invalid parameter",
		Detail:  detail,
	})
}

// Unauthorized 未认证响应
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    errors.CodeUnauthorized,
		Message: message,
	})
}
