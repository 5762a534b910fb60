// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/pkg/logger"
)

type FileRepository struct {
	client *Client
}

func NewFileRepository(client *Client) *FileRepository {
	return &FileRepository{client: client}
}

// Create 创建文件记录；同名文件直接返回已存在的记录
func (r *FileRepository) Create(ctx context.Context, file *entity.File) (*entity.File, error) {
	ctx, span := tracer.Start(ctx, "postgres.FileRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var existing entity.File
	err := db.First(&existing, "name = ?", file.Name).Error
	if err == nil {
		logger.Info(ctx, "deduplicating file by name", "name", file.Name, "file_id", existing.ID)
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check existing file: %w", err)
	}

	if err := db.Create(file).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*entity.File, error) {
	ctx, span := tracer.Start(ctx, "postgres.FileRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var file entity.File
	if err := db.First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) GetByURL(ctx context.Context, url string) (*entity.File, error) {
	ctx, span := tracer.Start(ctx, "postgres.FileRepository.GetByURL")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var file entity.File
	if err := db.First(&file, "url = ?", url).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get file by url: %w", err)
	}
	return &file, nil
}

// UpdateRemoteReference 写回刷新后的远程引用，覆盖任何陈旧值
func (r *FileRepository) UpdateRemoteReference(ctx context.Context, id, remoteURI string, expiresAt time.Time) (*entity.File, error) {
	ctx, span := tracer.Start(ctx, "postgres.FileRepository.UpdateRemoteReference")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.File{}).Where("id = ?", id).Updates(map[string]interface{}{
		"remote_uri":        remoteURI,
		"remote_expires_at": expiresAt,
	})
	if res.Error != nil {
		span.RecordError(res.Error)
		return nil, fmt.Errorf("failed to update remote reference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.FileRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.File{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
