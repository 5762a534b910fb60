// Package storage 提供对象存储访问层实现
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-chat-ai-api/internal/config"
)

var tracer = otel.Tracer("storage")

// Client R2 对象存储客户端（S3 兼容接口）
type Client struct {
	mc        *minio.Client
	bucket    string
	publicURL string
}

// NewClient 创建对象存储客户端
func NewClient(cfg *config.R2Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Client{
		mc:        mc,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Upload 上传对象并返回可公开访问的 URL
func (c *Client) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "storage.Upload")
	span.SetAttributes(
		attribute.String("storage.object", objectName),
		attribute.Int64("storage.size", size),
	)
	defer span.End()

	_, err := c.mc.PutObject(ctx, c.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}

	return c.PublicURL(objectName), nil
}

// Remove 删除对象
func (c *Client) Remove(ctx context.Context, objectName string) error {
	ctx, span := tracer.Start(ctx, "storage.Remove")
	span.SetAttributes(attribute.String("storage.object", objectName))
	defer span.End()

	if err := c.mc.RemoveObject(ctx, c.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to remove object %s: %w", objectName, err)
	}
	return nil
}

// PublicURL 构造对象的公开访问 URL
func (c *Client) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s", c.publicURL, objectName)
}
