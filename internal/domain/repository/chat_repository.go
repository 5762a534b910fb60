// Package repository 定义领域仓储接口
package repository

import (
	"context"

	"z-chat-ai-api/internal/domain/entity"
)

// ChatRepository 会话仓储
type ChatRepository interface {
	// Save 保存会话，已存在则整体覆盖消息（upsert）
	Save(ctx context.Context, chat *entity.Chat) error
	// GetByID 按 ID 查询，未找到返回 nil
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	// ListByUser 按创建时间倒序列出用户的会话
	ListByUser(ctx context.Context, userID string) ([]*entity.Chat, error)
	// Delete 删除会话
	Delete(ctx context.Context, id string) error
}
