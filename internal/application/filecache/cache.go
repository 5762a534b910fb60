// Package filecache 维护文件在模型提供方侧的引用缓存
//
// 提供方注册的文件句柄带有过期时间，过期后必须重新从对象存储拉取
// 原始内容并再次注册。缓存的真实来源是数据库中的 files 表，
// 本包只负责命中判断与失效刷新。
package filecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/internal/infrastructure/llm"
	"z-chat-ai-api/pkg/errors"
	"z-chat-ai-api/pkg/logger"
	"z-chat-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("filecache")

// Uploader 提供方文件注册接口
type Uploader interface {
	UploadFile(ctx context.Context, r io.Reader, name, mimeType string) (*llm.RemoteFile, error)
}

// Reference 解析后的可用远程引用
type Reference struct {
	URI      string
	MimeType string
}

// Service 远程引用缓存服务
type Service struct {
	files    repository.FileRepository
	uploader Uploader
	fetcher  *http.Client
	group    singleflight.Group
	now      func() time.Time
}

// NewService 创建缓存服务
func NewService(files repository.FileRepository, uploader Uploader) *Service {
	return &Service{
		files:    files,
		uploader: uploader,
		fetcher:  &http.Client{Timeout: 60 * time.Second},
		now:      time.Now,
	}
}

// Resolve 解析文件的远程引用，必要时刷新
//
// 命中：记录存在且远程引用未过期，直接返回。
// 未命中：从对象存储拉取原始内容、按归一化 MIME 注册到提供方、
// 将新句柄写回数据库后返回。同一文件的并发刷新会被合并为一次。
func (s *Service) Resolve(ctx context.Context, fileID string) (*Reference, error) {
	ctx, span := tracer.Start(ctx, "filecache.Resolve")
	span.SetAttributes(attribute.String("file.id", fileID))
	defer span.End()

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errors.New(errors.CodeFileNotFound, "file not found").WithDetail(fileID)
	}

	if file.HasValidRemote(s.now()) {
		metrics.FileCacheHitsTotal.Inc()
		span.SetAttributes(attribute.Bool("filecache.hit", true))
		logger.Debug(ctx, "remote reference cache hit", "file_id", fileID)
		return &Reference{URI: *file.RemoteURI, MimeType: file.ProviderMimeType()}, nil
	}

	metrics.FileCacheMissesTotal.Inc()
	span.SetAttributes(attribute.Bool("filecache.hit", false))
	logger.Info(ctx, "remote reference cache miss, refreshing", "file_id", fileID, "file_name", file.Name)

	// 并发解析同一文件时只刷新一次
	v, err, _ := s.group.Do(fileID, func() (any, error) {
		return s.refresh(ctx, file)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.(*Reference), nil
}

// refresh 从源存储拉取内容并重新注册到提供方
func (s *Service) refresh(ctx context.Context, file *entity.File) (*Reference, error) {
	ctx, span := tracer.Start(ctx, "filecache.refresh")
	span.SetAttributes(attribute.String("file.id", file.ID))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFileFetchFailed, "failed to build origin request")
	}

	resp, err := s.fetcher.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeFileFetchFailed, "failed to fetch file from origin")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("origin returned status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeFileFetchFailed, "failed to fetch file from origin")
	}

	// 响应体直接流入提供方上传，不在本地落盘
	mimeType := file.ProviderMimeType()
	remote, err := s.uploader.UploadFile(ctx, resp.Body, file.Name, mimeType)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeLLMProviderError, "failed to register file with provider")
	}

	updated, err := s.files.UpdateRemoteReference(ctx, file.ID, remote.URI, remote.ExpiresAt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if updated == nil {
		return nil, errors.New(errors.CodeFileNotFound, "file not found").WithDetail(file.ID)
	}

	logger.Info(ctx, "remote reference refreshed",
		"file_id", file.ID,
		"expires_at", remote.ExpiresAt,
	)
	return &Reference{URI: remote.URI, MimeType: mimeType}, nil
}
