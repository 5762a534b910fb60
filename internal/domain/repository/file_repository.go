// Package repository 定义领域仓储接口
package repository

import (
	"context"
	"time"

	"z-chat-ai-api/internal/domain/entity"
)

// FileRepository 文件记录仓储
type FileRepository interface {
	// Create 创建文件记录；同名文件直接返回已存在的记录（按名去重）
	Create(ctx context.Context, file *entity.File) (*entity.File, error)
	// GetByID 按 ID 查询，未找到返回 nil
	GetByID(ctx context.Context, id string) (*entity.File, error)
	// GetByURL 按存储 URL 查询，未找到返回 nil
	GetByURL(ctx context.Context, url string) (*entity.File, error)
	// UpdateRemoteReference 写回刷新后的远程引用及其过期时间
	UpdateRemoteReference(ctx context.Context, id, remoteURI string, expiresAt time.Time) (*entity.File, error)
	// Delete 删除文件记录
	Delete(ctx context.Context, id string) error
}
