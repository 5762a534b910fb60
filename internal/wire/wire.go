// Package wire 组装应用依赖
package wire

import (
	"context"
	"fmt"

	appauth "z-chat-ai-api/internal/application/auth"
	appchat "z-chat-ai-api/internal/application/chat"
	"z-chat-ai-api/internal/application/file"
	"z-chat-ai-api/internal/application/filecache"
	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/infrastructure/llm"
	"z-chat-ai-api/internal/infrastructure/persistence/postgres"
	"z-chat-ai-api/internal/infrastructure/persistence/redis"
	"z-chat-ai-api/internal/infrastructure/storage"
	"z-chat-ai-api/internal/interfaces/http/handler"
	"z-chat-ai-api/internal/interfaces/http/router"
	"z-chat-ai-api/pkg/logger"
	"z-chat-ai-api/pkg/utils"
)

// App 组装完成的应用
type App struct {
	Router *router.Router
}

// InitializeApp 按依赖顺序构建应用，返回清理函数
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	rdb, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	store, err := storage.NewClient(&cfg.Storage.R2)
	if err != nil {
		rdb.Close()
		pg.Close()
		return nil, nil, fmt.Errorf("failed to init object storage: %w", err)
	}

	gemini, err := llm.NewGemini(ctx, &cfg.LLM)
	if err != nil {
		rdb.Close()
		pg.Close()
		return nil, nil, fmt.Errorf("failed to init llm provider: %w", err)
	}

	cleanup := func() {
		if err := gemini.Close(); err != nil {
			logger.Error(context.Background(), "failed to close llm client", err)
		}
		if err := rdb.Close(); err != nil {
			logger.Error(context.Background(), "failed to close redis", err)
		}
		if err := pg.Close(); err != nil {
			logger.Error(context.Background(), "failed to close postgres", err)
		}
	}

	// 仓储
	fileRepo := postgres.NewFileRepository(pg)
	chatRepo := postgres.NewChatRepository(pg)
	userRepo := postgres.NewUserRepository(pg)

	// 应用服务
	cacheSvc := filecache.NewService(fileRepo, gemini)
	assembler := appchat.NewAssembler(cacheSvc)
	pipeline := appchat.NewPipeline(chatRepo)
	fileSvc := file.NewService(fileRepo, store, &cfg.Upload)
	jwtManager := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
	txManager := postgres.NewTxManager(pg)
	authSvc := appauth.NewService(userRepo, txManager, jwtManager, &cfg.Security.JWT)

	// 处理器
	handlers := router.Handlers{
		Auth: handler.NewAuthHandler(authSvc),
		Chat: handler.NewChatHandler(assembler, pipeline, gemini, chatRepo),
		File: handler.NewFileHandler(fileSvc),
		Health: handler.NewHealthHandler(cfg.App.Version, map[string]handler.HealthChecker{
			"postgres": pg,
			"redis":    rdb,
		}),
	}

	limiter := redis.NewRateLimiter(rdb)
	r := router.New(cfg, handlers, limiter)

	return &App{Router: r}, cleanup, nil
}
