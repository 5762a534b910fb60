// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	appchat "z-chat-ai-api/internal/application/chat"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/internal/infrastructure/llm"
	"z-chat-ai-api/internal/interfaces/http/dto"
	"z-chat-ai-api/internal/interfaces/http/middleware"
	"z-chat-ai-api/pkg/errors"
	"z-chat-ai-api/pkg/logger"
)

// ChatStreamer 模型流式对话接口
type ChatStreamer interface {
	StreamChat(ctx context.Context, history []llm.Turn, current []llm.Part) (llm.TokenStream, error)
}

// ChatHandler 会话处理器
type ChatHandler struct {
	assembler *appchat.Assembler
	pipeline  *appchat.Pipeline
	streamer  ChatStreamer
	chatRepo  repository.ChatRepository
}

// NewChatHandler 创建会话处理器
func NewChatHandler(assembler *appchat.Assembler, pipeline *appchat.Pipeline, streamer ChatStreamer, chatRepo repository.ChatRepository) *ChatHandler {
	return &ChatHandler{
		assembler: assembler,
		pipeline:  pipeline,
		streamer:  streamer,
		chatRepo:  chatRepo,
	}
}

// Stream 发起对话
// @Summary 发起对话并流式返回模型回复
// @Tags Chat
// @Accept json
// @Produce plain
// @Param body body dto.ChatRequest true "会话消息"
// @Success 200 {string} string "数据流帧"
// @Failure 400 {object} dto.Response
// @Router /v1/chat [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.ChatIDKey, req.ID)
	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		dto.Unauthorized(c, "unauthorized")
		return
	}

	messages := dto.ToEntityMessages(req.Messages)
	incoming := messages[len(messages)-1]
	if incoming.Role != entity.RoleUser {
		dto.BadRequest(c, "last message must be from user")
		return
	}

	history, current, err := h.assembler.Assemble(ctx, messages[:len(messages)-1], incoming, req.FileIDs())
	if err != nil {
		logger.Error(ctx, "failed to assemble conversation", err)
		dto.Error(c, err)
		return
	}

	src, err := h.streamer.StreamChat(ctx, history, current)
	if err != nil {
		logger.Error(ctx, "failed to start model stream", err)
		dto.Error(c, errors.Wrap(err, errors.CodeLLMProviderError, "llm provider call failed"))
		return
	}

	// 进入流式阶段后不能再改写状态码，错误以数据帧表达
	c.Header("Content-Type", appchat.StreamContentType)
	c.Header(appchat.StreamHeaderName, appchat.StreamHeaderValue)
	c.Status(http.StatusOK)

	_ = h.pipeline.Run(ctx, c.Writer, src, &appchat.PersistRequest{
		ChatID:   req.ID,
		UserID:   userID,
		Messages: messages,
		FileIDs:  req.FileIDs(),
	})
}

// Delete 删除会话
// @Summary 删除会话，仅限所有者
// @Tags Chat
// @Produce json
// @Param id query string true "会话 ID"
// @Success 200 {object} dto.Response
// @Router /v1/chat [delete]
func (h *ChatHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	id := c.Query("id")
	if id == "" {
		dto.Error(c, errors.New(errors.CodeChatNotFound, "chat not found"))
		return
	}

	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		dto.Unauthorized(c, "unauthorized")
		return
	}

	chat, err := h.chatRepo.GetByID(ctx, id)
	if err != nil {
		logger.Error(ctx, "failed to load chat", err, "chat_id", id)
		dto.Error(c, err)
		return
	}
	if chat == nil {
		dto.Error(c, errors.New(errors.CodeChatNotFound, "chat not found"))
		return
	}
	if chat.UserID != userID {
		dto.Unauthorized(c, "unauthorized")
		return
	}

	if err := h.chatRepo.Delete(ctx, id); err != nil {
		logger.Error(ctx, "failed to delete chat", err, "chat_id", id)
		dto.Error(c, err)
		return
	}

	logger.Info(ctx, "chat deleted", "chat_id", id)
	dto.Success(c, gin.H{"id": id})
}

// List 列出当前用户的会话
// @Summary 会话列表，按创建时间倒序
// @Tags Chat
// @Produce json
// @Success 200 {object} dto.Response
// @Router /v1/chats [get]
func (h *ChatHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		dto.Unauthorized(c, "unauthorized")
		return
	}

	chats, err := h.chatRepo.ListByUser(ctx, userID)
	if err != nil {
		logger.Error(ctx, "failed to list chats", err)
		dto.Error(c, err)
		return
	}

	summaries := make([]dto.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summaries = append(summaries, dto.ChatSummary{
			ID:        chat.ID,
			CreatedAt: chat.CreatedAt,
			UpdatedAt: chat.UpdatedAt,
		})
	}
	dto.Success(c, summaries)
}

// Get 获取会话详情
// @Summary 会话详情，仅限所有者
// @Tags Chat
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response
// @Router /v1/chats/{id} [get]
func (h *ChatHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		dto.Unauthorized(c, "unauthorized")
		return
	}

	id := c.Param("id")
	chat, err := h.chatRepo.GetByID(ctx, id)
	if err != nil {
		logger.Error(ctx, "failed to load chat", err, "chat_id", id)
		dto.Error(c, err)
		return
	}
	if chat == nil || chat.UserID != userID {
		dto.Error(c, errors.New(errors.CodeChatNotFound, "chat not found"))
		return
	}

	messages, err := chat.DecodeMessages()
	if err != nil {
		logger.Error(ctx, "failed to decode chat messages", err, "chat_id", id)
		dto.Error(c, errors.Wrap(err, errors.CodeInternalError, "failed to decode chat"))
		return
	}

	dto.Success(c, dto.ChatDetail{
		ID:        chat.ID,
		Messages:  messages,
		FileIDs:   chat.FileIDs,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	})
}
