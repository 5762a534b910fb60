// Package repository 定义领域仓储接口
package repository

import (
	"context"

	"z-chat-ai-api/internal/domain/entity"
)

// UserRepository 用户仓储
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	// GetByID 按 ID 查询，未找到返回 nil
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// GetByEmail 按邮箱查询，未找到返回 nil
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
