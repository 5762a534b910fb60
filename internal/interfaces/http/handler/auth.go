package handler

import (
	"github.com/gin-gonic/gin"

	appauth "z-chat-ai-api/internal/application/auth"
	"z-chat-ai-api/internal/interfaces/http/dto"
	"z-chat-ai-api/pkg/logger"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	auth *appauth.Service
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(auth *appauth.Service) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register 注册
// @Summary 用户注册
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.RegisterRequest true "注册信息"
// @Success 201 {object} dto.Response[dto.AuthResponse]
// @Failure 409 {object} dto.Response
// @Router /v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.auth.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		logger.Warn(ctx, "registration failed", "email", req.Email, "error", err.Error())
		dto.Error(c, err)
		return
	}

	dto.Created(c, toAuthResponse(result))
}

// Login 登录
// @Summary 用户登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "登录凭证"
// @Success 200 {object} dto.Response[dto.AuthResponse]
// @Failure 401 {object} dto.Response
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		dto.Error(c, err)
		return
	}

	dto.Success(c, toAuthResponse(result))
}

func toAuthResponse(result *appauth.Result) dto.AuthResponse {
	return dto.AuthResponse{
		UserID:       result.User.ID,
		Email:        result.User.Email,
		Name:         result.User.Name,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}
}
