// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-chat-ai-api/internal/domain/entity"
)

type ChatRepository struct {
	client *Client
}

func NewChatRepository(client *Client) *ChatRepository {
	return &ChatRepository{client: client}
}

// Save 保存会话；已存在则整体覆盖消息与文件引用
func (r *ChatRepository) Save(ctx context.Context, chat *entity.Chat) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"messages", "file_ids", "updated_at"}),
	}).Create(chat).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chat entity.Chat
	if err := db.First(&chat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Chat, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chats []*entity.Chat
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&chats).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Chat{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}
