package llm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("llm")

// 对话角色，与提供方 API 的取值保持一致
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// DefaultSystemPrompt 默认系统提示词
const DefaultSystemPrompt = "You are a helpful product intelligence assistant. " +
	"Answer questions about the documents and images the user shares, " +
	"cite concrete details from the provided files, and say so plainly when " +
	"the files do not contain the answer."

// Gemini Google Gemini 提供方客户端
type Gemini struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

// NewGemini 创建 Gemini 客户端
func NewGemini(ctx context.Context, cfg *config.LLMConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	return &Gemini{
		client:       client,
		model:        cfg.Model,
		systemPrompt: prompt,
	}, nil
}

// Close 关闭底层连接
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Model 当前使用的模型名
func (g *Gemini) Model() string {
	return g.model
}

// UploadFile 将文件内容注册到提供方文件服务
// 返回的句柄带有提供方侧的过期时间
func (g *Gemini) UploadFile(ctx context.Context, r io.Reader, name, mimeType string) (*RemoteFile, error) {
	ctx, span := tracer.Start(ctx, "llm.UploadFile")
	span.SetAttributes(
		attribute.String("llm.file_name", name),
		attribute.String("llm.mime_type", mimeType),
	)
	defer span.End()

	start := time.Now()
	f, err := g.client.UploadFile(ctx, "", r, &genai.UploadFileOptions{
		DisplayName: name,
		MIMEType:    mimeType,
	})
	metrics.FileCacheUploadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.FileCacheUploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to upload file %s: %w", name, err)
	}
	metrics.FileCacheUploadsTotal.WithLabelValues("success").Inc()

	return &RemoteFile{
		URI:       f.URI,
		MimeType:  mimeType,
		ExpiresAt: f.ExpirationTime,
	}, nil
}

// StreamChat 以历史对话为上下文发送当前消息，返回增量回复流
func (g *Gemini) StreamChat(ctx context.Context, history []Turn, current []Part) (TokenStream, error) {
	ctx, span := tracer.Start(ctx, "llm.StreamChat")
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("llm.history_turns", len(history)),
	)
	defer span.End()

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(g.systemPrompt)},
	}

	cs := model.StartChat()
	cs.History = make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		cs.History = append(cs.History, &genai.Content{
			Role:  turn.Role,
			Parts: toGenaiParts(turn.Parts),
		})
	}

	metrics.LLMCallTotal.WithLabelValues("gemini", g.model, "started").Inc()
	it := cs.SendMessageStream(ctx, toGenaiParts(current)...)

	return &geminiStream{it: it, model: g.model, start: time.Now()}, nil
}

func toGenaiParts(parts []Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.File != nil {
			out = append(out, genai.FileData{
				MIMEType: p.File.MimeType,
				URI:      p.File.URI,
			})
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

// geminiStream 将 SDK 的迭代器适配为 TokenStream
type geminiStream struct {
	it    *genai.GenerateContentResponseIterator
	model string
	start time.Time
}

func (s *geminiStream) Recv() (string, error) {
	resp, err := s.it.Next()
	if err == iterator.Done {
		metrics.LLMCallTotal.WithLabelValues("gemini", s.model, "success").Inc()
		metrics.LLMCallDuration.WithLabelValues("gemini", s.model).Observe(time.Since(s.start).Seconds())
		return "", io.EOF
	}
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("gemini", s.model, "error").Inc()
		return "", fmt.Errorf("failed to receive stream chunk: %w", err)
	}

	metrics.LLMStreamChunksTotal.WithLabelValues("gemini", s.model).Inc()
	return extractText(resp), nil
}

// extractText 拼接响应中所有候选的文本片段
func extractText(resp *genai.GenerateContentResponse) string {
	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	return text
}
