package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/internal/infrastructure/llm"
	"z-chat-ai-api/pkg/logger"
)

// 数据流帧类型前缀
const (
	textFramePrefix  = "0:"
	errorFramePrefix = "3:"
)

// 流式响应头
const (
	StreamContentType = "text/plain; charset=utf-8"
	StreamHeaderName  = "X-Vercel-AI-Data-Stream"
	StreamHeaderValue = "v1"
)

// PersistRequest 流结束后需要持久化的会话内容
// Messages 已包含本轮用户消息；UserID 为空时跳过持久化
type PersistRequest struct {
	ChatID   string
	UserID   string
	Messages []entity.Message
	FileIDs  []string
}

// Pipeline 流式回复管道
// 边收边转发模型增量，流正常结束后落库完整会话
type Pipeline struct {
	chats repository.ChatRepository
}

// NewPipeline 创建流式管道
func NewPipeline(chats repository.ChatRepository) *Pipeline {
	return &Pipeline{chats: chats}
}

// Run 消费模型增量流并写入响应
//
// 每个增量单独成帧并立即刷出。流中途出错时发送错误帧并放弃持久化；
// 客户端断开（ctx 取消）同样不持久化。只有流完整结束才保存会话。
func (p *Pipeline) Run(ctx context.Context, w io.Writer, src llm.TokenStream, req *PersistRequest) error {
	ctx, span := tracer.Start(ctx, "chat.Stream")
	span.SetAttributes(attribute.String("chat.id", req.ChatID))
	defer span.End()

	flusher, _ := w.(http.Flusher)
	var reply strings.Builder

	for {
		select {
		case <-ctx.Done():
			logger.Warn(ctx, "client disconnected mid-stream", "chat_id", req.ChatID)
			return ctx.Err()
		default:
		}

		chunk, err := src.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			span.RecordError(err)
			logger.Error(ctx, "stream interrupted", err, "chat_id", req.ChatID)
			writeFrame(w, errorFramePrefix, "stream interrupted")
			if flusher != nil {
				flusher.Flush()
			}
			return err
		}
		if chunk == "" {
			continue
		}

		reply.WriteString(chunk)
		if err := writeFrame(w, textFramePrefix, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if req.UserID == "" {
		logger.Debug(ctx, "anonymous chat, skipping persistence", "chat_id", req.ChatID)
		return nil
	}

	if err := p.persist(ctx, req, reply.String()); err != nil {
		// 响应已经完整送达，不再追加错误帧，落库失败记录后上抛
		span.RecordError(err)
		logger.Error(ctx, "failed to persist chat after stream", err, "chat_id", req.ChatID)
		return err
	}
	return nil
}

// persist 追加助手回复后整体保存会话
func (p *Pipeline) persist(ctx context.Context, req *PersistRequest, reply string) error {
	messages := append(req.Messages, entity.Message{
		ID:      uuid.New().String(),
		Role:    entity.RoleAssistant,
		Content: reply,
	})

	chat, err := entity.NewChat(req.ChatID, req.UserID, messages, req.FileIDs)
	if err != nil {
		return err
	}
	if err := p.chats.Save(ctx, chat); err != nil {
		return err
	}

	logger.Info(ctx, "chat persisted", "chat_id", req.ChatID, "messages", len(messages))
	return nil
}

// writeFrame 以 `<type>:<json-string>\n` 格式写出一帧
func writeFrame(w io.Writer, prefix, payload string) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s%s\n", prefix, encoded); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
