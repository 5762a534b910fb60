// Package llm 提供生成式模型提供方的访问层实现
package llm

import (
	"time"
)

// FileReference 指向提供方侧已注册文件的引用
type FileReference struct {
	URI      string
	MimeType string
}

// Part 对话内容片段，文本与文件引用二选一
type Part struct {
	Text string
	File *FileReference
}

// TextPart 构造文本片段
func TextPart(text string) Part {
	return Part{Text: text}
}

// FilePart 构造文件引用片段
func FilePart(uri, mimeType string) Part {
	return Part{File: &FileReference{URI: uri, MimeType: mimeType}}
}

// Turn 一轮对话：角色加有序片段
// 片段顺序约定：文件引用在前，文本在后
type Turn struct {
	Role  string
	Parts []Part
}

// RemoteFile 提供方注册文件后返回的句柄
type RemoteFile struct {
	URI       string
	MimeType  string
	ExpiresAt time.Time
}

// TokenStream 模型回复的增量拉取流
// Recv 在流正常耗尽时返回 io.EOF
type TokenStream interface {
	Recv() (string, error)
}
