// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Attachment 消息携带的附件引用
// 只持久化内部文件 ID 与展示信息，永不持久化远程句柄
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Message 会话消息
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Chat 会话记录，完整对话以 JSON 序列化存储
type Chat struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string          `json:"user_id" gorm:"type:uuid;index;not null"`
	Messages  json.RawMessage `json:"messages" gorm:"type:jsonb;not null"`
	FileIDs   pq.StringArray  `json:"file_ids,omitempty" gorm:"type:text[]"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Chat) TableName() string {
	return "chats"
}

// NewChat 创建会话记录
func NewChat(id, userID string, messages []Message, fileIDs []string) (*Chat, error) {
	chat := &Chat{
		ID:        id,
		UserID:    userID,
		FileIDs:   fileIDs,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := chat.SetMessages(messages); err != nil {
		return nil, err
	}
	return chat, nil
}

// SetMessages 序列化并设置会话消息
func (c *Chat) SetMessages(messages []Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	c.Messages = raw
	return nil
}

// DecodeMessages 反序列化会话消息
func (c *Chat) DecodeMessages() ([]Message, error) {
	if len(c.Messages) == 0 {
		return nil, nil
	}
	var messages []Message
	if err := json.Unmarshal(c.Messages, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return messages, nil
}
