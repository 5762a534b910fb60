package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	appchat "z-chat-ai-api/internal/application/chat"
	"z-chat-ai-api/internal/application/filecache"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/infrastructure/llm"
	"z-chat-ai-api/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	refs map[string]*filecache.Reference
}

func (r *fakeResolver) Resolve(ctx context.Context, fileID string) (*filecache.Reference, error) {
	ref, ok := r.refs[fileID]
	if !ok {
		return nil, fmt.Errorf("no remote reference for %s", fileID)
	}
	return ref, nil
}

type fakeStream struct {
	chunks []string
	pos    int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

type fakeStreamer struct {
	history []llm.Turn
	current []llm.Part
	chunks  []string
	err     error
}

func (s *fakeStreamer) StreamChat(ctx context.Context, history []llm.Turn, current []llm.Part) (llm.TokenStream, error) {
	s.history = history
	s.current = current
	if s.err != nil {
		return nil, s.err
	}
	return &fakeStream{chunks: s.chunks}, nil
}

type fakeChatRepo struct {
	chats map[string]*entity.Chat
	saved []*entity.Chat
}

func newFakeChatRepo(chats ...*entity.Chat) *fakeChatRepo {
	m := make(map[string]*entity.Chat)
	for _, chat := range chats {
		m[chat.ID] = chat
	}
	return &fakeChatRepo{chats: m}
}

func (r *fakeChatRepo) Save(ctx context.Context, chat *entity.Chat) error {
	r.saved = append(r.saved, chat)
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	return r.chats[id], nil
}

func (r *fakeChatRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Chat, error) {
	var out []*entity.Chat
	for _, chat := range r.chats {
		if chat.UserID == userID {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) Delete(ctx context.Context, id string) error {
	delete(r.chats, id)
	return nil
}

func newChatTestRouter(h *ChatHandler, userID string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		c.Next()
	})
	r.POST("/v1/chat", h.Stream)
	r.DELETE("/v1/chat", h.Delete)
	r.GET("/v1/chats", h.List)
	r.GET("/v1/chats/:id", h.Get)
	return r
}

func chatRequestBody(t *testing.T, id string, files []string, messages ...map[string]any) *bytes.Buffer {
	t.Helper()
	body := map[string]any{"id": id, "messages": messages}
	if files != nil {
		body["data"] = map[string]any{"files": files}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewBuffer(raw)
}

func TestStreamChatRespondsWithDataStream(t *testing.T) {
	repo := newFakeChatRepo()
	streamer := &fakeStreamer{chunks: []string{"Hi", " there"}}
	resolver := &fakeResolver{refs: map[string]*filecache.Reference{
		"f1": {URI: "providers/files/f1", MimeType: "application/pdf"},
	}}
	h := NewChatHandler(appchat.NewAssembler(resolver), appchat.NewPipeline(repo), streamer, repo)

	router := newChatTestRouter(h, "u1")
	body := chatRequestBody(t, "c1", []string{"f1"},
		map[string]any{"id": "m1", "role": "user", "content": "hello"},
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Vercel-AI-Data-Stream"); got != "v1" {
		t.Errorf("missing data stream header, got %q", got)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("unexpected content type %q", got)
	}
	if w.Body.String() != "0:\"Hi\"\n0:\" there\"\n" {
		t.Errorf("unexpected frames: %q", w.Body.String())
	}

	// 当前消息：文件引用在前，文本在后
	if len(streamer.current) != 2 {
		t.Fatalf("expected 2 current parts, got %d", len(streamer.current))
	}
	if streamer.current[0].File == nil || streamer.current[0].File.URI != "providers/files/f1" {
		t.Errorf("expected file part first, got %+v", streamer.current[0])
	}

	if len(repo.saved) != 1 {
		t.Fatalf("expected chat persisted, got %d saves", len(repo.saved))
	}
	messages, _ := repo.saved[0].DecodeMessages()
	if len(messages) != 2 || messages[1].Content != "Hi there" {
		t.Errorf("unexpected persisted messages: %+v", messages)
	}
}

func TestStreamChatRequiresSession(t *testing.T) {
	repo := newFakeChatRepo()
	h := NewChatHandler(
		appchat.NewAssembler(&fakeResolver{}),
		appchat.NewPipeline(repo),
		&fakeStreamer{chunks: []string{"ok"}},
		repo,
	)

	router := newChatTestRouter(h, "")
	body := chatRequestBody(t, "c1", nil,
		map[string]any{"id": "m1", "role": "user", "content": "hello"},
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(repo.saved) != 0 {
		t.Errorf("expected nothing persisted, got %d saves", len(repo.saved))
	}
}

func TestStreamChatRejectsEmptyMessages(t *testing.T) {
	repo := newFakeChatRepo()
	h := NewChatHandler(appchat.NewAssembler(&fakeResolver{}), appchat.NewPipeline(repo), &fakeStreamer{}, repo)

	router := newChatTestRouter(h, "u1")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"id":"c1","messages":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStreamChatSkipsBadFileAndStreams(t *testing.T) {
	repo := newFakeChatRepo()
	streamer := &fakeStreamer{chunks: []string{"ok"}}
	resolver := &fakeResolver{refs: map[string]*filecache.Reference{
		"f1": {URI: "providers/files/f1", MimeType: "image/png"},
	}}
	h := NewChatHandler(appchat.NewAssembler(resolver), appchat.NewPipeline(repo), streamer, repo)

	router := newChatTestRouter(h, "u1")
	body := chatRequestBody(t, "c1", []string{"missing", "f1"},
		map[string]any{"id": "m1", "role": "user", "content": "hello"},
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with broken attachment skipped, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "0:\"ok\"\n" {
		t.Errorf("unexpected frames: %q", w.Body.String())
	}
	if len(streamer.current) != 2 {
		t.Fatalf("expected surviving file part plus text part, got %d", len(streamer.current))
	}
	if streamer.current[0].File == nil || streamer.current[0].File.URI != "providers/files/f1" {
		t.Errorf("expected surviving attachment forwarded, got %+v", streamer.current[0])
	}
}

func mustChat(t *testing.T, id, userID string) *entity.Chat {
	t.Helper()
	chat, err := entity.NewChat(id, userID, []entity.Message{
		{ID: "m1", Role: entity.RoleUser, Content: "hello"},
		{ID: "m2", Role: entity.RoleAssistant, Content: "hi"},
	}, nil)
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	return chat
}

func TestDeleteChat(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		query  string
		want   int
	}{
		{"missing id", "u1", "", http.StatusNotFound},
		{"anonymous", "", "?id=c1", http.StatusUnauthorized},
		{"not owner", "u2", "?id=c1", http.StatusUnauthorized},
		{"unknown chat", "u1", "?id=nope", http.StatusNotFound},
		{"owner", "u1", "?id=c1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeChatRepo(mustChat(t, "c1", "u1"))
			h := NewChatHandler(appchat.NewAssembler(&fakeResolver{}), appchat.NewPipeline(repo), &fakeStreamer{}, repo)
			router := newChatTestRouter(h, tt.userID)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodDelete, "/v1/chat"+tt.query, nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetChatHidesOthersChats(t *testing.T) {
	repo := newFakeChatRepo(mustChat(t, "c1", "u1"))
	h := NewChatHandler(appchat.NewAssembler(&fakeResolver{}), appchat.NewPipeline(repo), &fakeStreamer{}, repo)
	router := newChatTestRouter(h, "u2")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats/c1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's chat, got %d", w.Code)
	}
}

func TestListChats(t *testing.T) {
	repo := newFakeChatRepo(mustChat(t, "c1", "u1"), mustChat(t, "c2", "u2"))
	h := NewChatHandler(appchat.NewAssembler(&fakeResolver{}), appchat.NewPipeline(repo), &fakeStreamer{}, repo)
	router := newChatTestRouter(h, "u1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "c1" {
		t.Errorf("expected only own chats, got %+v", resp.Data)
	}
}
