// Package entity 定义领域实体
package entity

import (
	"time"
)

// MIME 类型常量
const (
	MimeTypeJSON  = "application/json"
	MimeTypePlain = "text/plain"
)

// File 上传文件记录
// remote_uri / remote_expires_at 缓存模型提供方返回的文件句柄，
// 仅在过期时间之前有效
type File struct {
	ID              string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	URL             string     `json:"url" gorm:"type:text;not null"`
	Name            string     `json:"name" gorm:"type:text;not null"`
	MimeType        string     `json:"mime_type" gorm:"type:text;not null"`
	RemoteURI       *string    `json:"remote_uri,omitempty" gorm:"type:text"`
	RemoteExpiresAt *time.Time `json:"remote_expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (File) TableName() string {
	return "files"
}

// NewFile 创建文件记录
func NewFile(url, name, mimeType string) *File {
	return &File{
		URL:       url,
		Name:      name,
		MimeType:  mimeType,
		CreatedAt: time.Now(),
	}
}

// HasValidRemote 判断缓存的远程引用在 now 时刻是否仍然可用
// 过期或缺失的引用一律视为不可用
func (f *File) HasValidRemote(now time.Time) bool {
	return f.RemoteURI != nil && f.RemoteExpiresAt != nil && now.Before(*f.RemoteExpiresAt)
}

// ProviderMimeType 返回注册到模型提供方时使用的 MIME 类型
// 提供方不接受 application/json，按 text/plain 无损处理
func (f *File) ProviderMimeType() string {
	return NormalizeMimeType(f.MimeType)
}

// NormalizeMimeType 归一化 MIME 类型
func NormalizeMimeType(mimeType string) string {
	if mimeType == MimeTypeJSON {
		return MimeTypePlain
	}
	return mimeType
}
