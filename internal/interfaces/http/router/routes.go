// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由
// 除注册与登录外，所有业务路由要求有效的 AccessToken
func RegisterV1Routes(v1 *gin.RouterGroup, cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) {
	// 认证管理，无需 Token
	auth := v1.Group("/auth")
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	authed := v1.Group("")
	authed.Use(middleware.Auth(middleware.AuthConfig{
		Secret: cfg.Security.JWT.Secret,
		Issuer: cfg.Security.JWT.Issuer,
	}))
	authed.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
	}, limiter))

	// 会话
	authed.POST("/chat", handlers.Chat.Stream)
	authed.DELETE("/chat", handlers.Chat.Delete)
	authed.GET("/chats", handlers.Chat.List)
	authed.GET("/chats/:id", handlers.Chat.Get)

	// 附件
	files := authed.Group("/files")
	{
		files.POST("/upload", handlers.File.Upload)
		files.DELETE("", handlers.File.Delete)
	}
}
