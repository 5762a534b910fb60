// Package file 实现附件上传与删除用例
package file

import (
	"context"
	"io"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/pkg/errors"
	"z-chat-ai-api/pkg/logger"
	"z-chat-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("file")

// ObjectStore 对象存储接口
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, objectName string) error
}

// Service 附件服务
type Service struct {
	files repository.FileRepository
	store ObjectStore
	cfg   *config.UploadConfig
}

// NewService 创建附件服务
func NewService(files repository.FileRepository, store ObjectStore, cfg *config.UploadConfig) *Service {
	return &Service{files: files, store: store, cfg: cfg}
}

// Upload 校验并上传附件，返回文件记录
// 对象名即文件名，同名文件记录按名去重复用
func (s *Service) Upload(ctx context.Context, name, contentType string, size int64, r io.Reader) (*entity.File, error) {
	ctx, span := tracer.Start(ctx, "file.Upload")
	span.SetAttributes(
		attribute.String("file.name", name),
		attribute.String("file.content_type", contentType),
		attribute.Int64("file.size", size),
	)
	defer span.End()

	if size > s.cfg.MaxSizeBytes {
		metrics.AttachmentUploadsTotal.WithLabelValues(contentType, "rejected").Inc()
		return nil, errors.New(errors.CodeFileTooLarge, "file exceeds size limit")
	}
	if !slices.Contains(s.cfg.AllowedTypes, contentType) {
		metrics.AttachmentUploadsTotal.WithLabelValues(contentType, "rejected").Inc()
		return nil, errors.New(errors.CodeFileTypeDenied, "file type not allowed")
	}

	url, err := s.store.Upload(ctx, name, r, size, contentType)
	if err != nil {
		span.RecordError(err)
		metrics.AttachmentUploadsTotal.WithLabelValues(contentType, "error").Inc()
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to upload attachment")
	}

	record, err := s.files.Create(ctx, entity.NewFile(url, name, contentType))
	if err != nil {
		span.RecordError(err)
		metrics.AttachmentUploadsTotal.WithLabelValues(contentType, "error").Inc()
		return nil, err
	}

	metrics.AttachmentUploadsTotal.WithLabelValues(contentType, "success").Inc()
	logger.Info(ctx, "attachment uploaded", "file_id", record.ID, "name", name, "size", size)
	return record, nil
}

// Delete 按存储 URL 删除附件及其记录，未找到时静默成功
func (s *Service) Delete(ctx context.Context, url string) error {
	ctx, span := tracer.Start(ctx, "file.Delete")
	defer span.End()

	record, err := s.files.GetByURL(ctx, url)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if record == nil {
		logger.Debug(ctx, "attachment already gone", "url", url)
		return nil
	}

	if err := s.store.Remove(ctx, record.Name); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeStorageError, "failed to remove attachment object")
	}
	if err := s.files.Delete(ctx, record.ID); err != nil {
		span.RecordError(err)
		return err
	}

	logger.Info(ctx, "attachment deleted", "file_id", record.ID)
	return nil
}
