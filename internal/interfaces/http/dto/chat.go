package dto

import (
	"time"

	"z-chat-ai-api/internal/domain/entity"
)

// ChatAttachment 客户端消息携带的附件
// extras.id 是服务端文件记录的主键，历史消息靠它重新解析远程引用
type ChatAttachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url,omitempty"`
	Extras      struct {
		ID string `json:"id"`
	} `json:"extras"`
}

// ChatMessage 客户端消息
type ChatMessage struct {
	ID                      string           `json:"id"`
	Role                    string           `json:"role"`
	Content                 string           `json:"content"`
	ExperimentalAttachments []ChatAttachment `json:"experimental_attachments,omitempty"`
}

// ChatData 本轮新上传的文件 ID 列表
type ChatData struct {
	Files []string `json:"files,omitempty"`
}

// ChatRequest 发起对话请求
type ChatRequest struct {
	ID       string        `json:"id" binding:"required"`
	Messages []ChatMessage `json:"messages" binding:"required,min=1"`
	Data     *ChatData     `json:"data,omitempty"`
}

// FileIDs 返回本轮附带的文件 ID
func (r *ChatRequest) FileIDs() []string {
	if r.Data == nil {
		return nil
	}
	return r.Data.Files
}

// ToEntity 转换为领域消息
func (m *ChatMessage) ToEntity() entity.Message {
	msg := entity.Message{
		ID:      m.ID,
		Role:    entity.Role(m.Role),
		Content: m.Content,
	}
	for _, att := range m.ExperimentalAttachments {
		msg.Attachments = append(msg.Attachments, entity.Attachment{
			ID:          att.Extras.ID,
			Name:        att.Name,
			ContentType: att.ContentType,
			URL:         att.URL,
		})
	}
	return msg
}

// ToEntityMessages 批量转换客户端消息
func ToEntityMessages(messages []ChatMessage) []entity.Message {
	out := make([]entity.Message, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].ToEntity())
	}
	return out
}

// ChatSummary 会话列表项
type ChatSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatDetail 会话详情
type ChatDetail struct {
	ID        string           `json:"id"`
	Messages  []entity.Message `json:"messages"`
	FileIDs   []string         `json:"file_ids,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
