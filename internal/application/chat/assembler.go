// Package chat 实现会话编排：历史组装与流式回复管道
package chat

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"z-chat-ai-api/internal/application/filecache"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/infrastructure/llm"
	"z-chat-ai-api/pkg/logger"
)

var tracer = otel.Tracer("chat")

// Resolver 远程引用解析接口
type Resolver interface {
	Resolve(ctx context.Context, fileID string) (*filecache.Reference, error)
}

// Assembler 将持久化消息组装为提供方可消费的对话结构
type Assembler struct {
	resolver Resolver
}

// NewAssembler 创建组装器
func NewAssembler(resolver Resolver) *Assembler {
	return &Assembler{resolver: resolver}
}

// Assemble 组装历史轮次与当前消息片段
//
// 历史消息只保留 user/assistant 两种角色，轮次顺序与输入一致；
// 各历史消息的附件解析相互并发，单条消息内按附件顺序串行。
// 单个附件解析失败仅跳过该附件，不影响同请求内的其余附件。
func (a *Assembler) Assemble(ctx context.Context, prior []entity.Message, incoming entity.Message, fileIDs []string) ([]llm.Turn, []llm.Part, error) {
	ctx, span := tracer.Start(ctx, "chat.Assemble")
	span.SetAttributes(
		attribute.Int("chat.prior_messages", len(prior)),
		attribute.Int("chat.incoming_files", len(fileIDs)),
	)
	defer span.End()

	kept := make([]entity.Message, 0, len(prior))
	for _, msg := range prior {
		if msg.Role == entity.RoleUser || msg.Role == entity.RoleAssistant {
			kept = append(kept, msg)
		}
	}

	// 按原始下标写入各自槽位，保持轮次顺序
	turns := make([]llm.Turn, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	for i, msg := range kept {
		g.Go(func() error {
			turns[i] = a.buildTurn(gctx, msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	return turns, a.buildCurrentParts(ctx, incoming, fileIDs), nil
}

// buildTurn 构造一条历史轮次，附件引用在前、非空文本在后
// 无附件且无文本的消息保留为空轮次，角色不丢
func (a *Assembler) buildTurn(ctx context.Context, msg entity.Message) llm.Turn {
	parts := make([]llm.Part, 0, len(msg.Attachments)+1)
	for _, att := range msg.Attachments {
		ref, err := a.resolver.Resolve(ctx, att.ID)
		if err != nil {
			// 历史附件失效不阻断整个会话
			logger.Warn(ctx, "skipping unresolvable history attachment",
				"message_id", msg.ID,
				"file_id", att.ID,
				"error", err.Error(),
			)
			continue
		}
		parts = append(parts, llm.FilePart(ref.URI, ref.MimeType))
	}
	if msg.Content != "" {
		parts = append(parts, llm.TextPart(msg.Content))
	}

	return llm.Turn{Role: mapRole(msg.Role), Parts: parts}
}

// buildCurrentParts 构造当前消息的片段序列，失效附件跳过不中断
func (a *Assembler) buildCurrentParts(ctx context.Context, incoming entity.Message, fileIDs []string) []llm.Part {
	parts := make([]llm.Part, 0, len(fileIDs)+1)
	for _, id := range fileIDs {
		ref, err := a.resolver.Resolve(ctx, id)
		if err != nil {
			logger.Warn(ctx, "skipping unresolvable incoming attachment",
				"file_id", id,
				"error", err.Error(),
			)
			continue
		}
		parts = append(parts, llm.FilePart(ref.URI, ref.MimeType))
	}
	if incoming.Content != "" {
		parts = append(parts, llm.TextPart(incoming.Content))
	}
	return parts
}

// mapRole 将持久化角色映射为提供方角色
func mapRole(role entity.Role) string {
	if role == entity.RoleUser {
		return llm.RoleUser
	}
	return llm.RoleModel
}
