package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	appfile "z-chat-ai-api/internal/application/file"
	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
)

type fakeFileRepo struct {
	files  map[string]*entity.File
	nextID int
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*entity.File)}
}

func (r *fakeFileRepo) Create(ctx context.Context, file *entity.File) (*entity.File, error) {
	for _, existing := range r.files {
		if existing.Name == file.Name {
			return existing, nil
		}
	}
	r.nextID++
	file.ID = entityID(r.nextID)
	r.files[file.ID] = file
	return file, nil
}

func entityID(n int) string {
	return "file-" + string(rune('a'+n-1))
}

func (r *fakeFileRepo) GetByID(ctx context.Context, id string) (*entity.File, error) {
	return r.files[id], nil
}

func (r *fakeFileRepo) GetByURL(ctx context.Context, url string) (*entity.File, error) {
	for _, f := range r.files {
		if f.URL == url {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeFileRepo) UpdateRemoteReference(ctx context.Context, id, remoteURI string, expiresAt time.Time) (*entity.File, error) {
	f := r.files[id]
	if f == nil {
		return nil, nil
	}
	f.RemoteURI = &remoteURI
	f.RemoteExpiresAt = &expiresAt
	return f, nil
}

func (r *fakeFileRepo) Delete(ctx context.Context, id string) error {
	delete(r.files, id)
	return nil
}

type fakeStore struct {
	objects map[string]string
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]string)}
}

func (s *fakeStore) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	body, _ := io.ReadAll(r)
	s.objects[objectName] = string(body)
	return "https://cdn.example.com/" + objectName, nil
}

func (s *fakeStore) Remove(ctx context.Context, objectName string) error {
	s.removed = append(s.removed, objectName)
	delete(s.objects, objectName)
	return nil
}

func uploadCfg() *config.UploadConfig {
	return &config.UploadConfig{
		MaxSizeBytes: 5 * 1024 * 1024,
		AllowedTypes: []string{"image/png", "application/pdf", "application/json"},
	}
}

func newFileTestRouter(h *FileHandler) *gin.Engine {
	r := gin.New()
	r.POST("/v1/files/upload", h.Upload)
	r.DELETE("/v1/files", h.Delete)
	return r
}

func multipartBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAttachment(t *testing.T) {
	repo := newFakeFileRepo()
	store := newFakeStore()
	h := NewFileHandler(appfile.NewService(repo, store, uploadCfg()))
	router := newFileTestRouter(h)

	body, contentType := multipartBody(t, "doc.pdf", "application/pdf", "pdf-bytes")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			ID          string `json:"id"`
			URL         string `json:"url"`
			Pathname    string `json:"pathname"`
			ContentType string `json:"contentType"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.ID == "" || resp.Data.Pathname != "doc.pdf" || resp.Data.ContentType != "application/pdf" {
		t.Errorf("unexpected response: %+v", resp.Data)
	}
	if store.objects["doc.pdf"] != "pdf-bytes" {
		t.Errorf("expected object stored, got %+v", store.objects)
	}
}

func TestUploadDeduplicatesByName(t *testing.T) {
	repo := newFakeFileRepo()
	store := newFakeStore()
	h := NewFileHandler(appfile.NewService(repo, store, uploadCfg()))
	router := newFileTestRouter(h)

	var ids []string
	for i := 0; i < 2; i++ {
		body, contentType := multipartBody(t, "same.png", "image/png", "png")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
		req.Header.Set("Content-Type", contentType)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
		var resp struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		ids = append(ids, resp.Data.ID)
	}

	if ids[0] != ids[1] {
		t.Errorf("expected same file record for same name, got %q and %q", ids[0], ids[1])
	}
	if len(repo.files) != 1 {
		t.Errorf("expected one file record, got %d", len(repo.files))
	}
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	h := NewFileHandler(appfile.NewService(newFakeFileRepo(), newFakeStore(), uploadCfg()))
	router := newFileTestRouter(h)

	body, contentType := multipartBody(t, "script.sh", "application/x-sh", "#!/bin/sh")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for disallowed type, got %d", w.Code)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	cfg := uploadCfg()
	cfg.MaxSizeBytes = 4
	h := NewFileHandler(appfile.NewService(newFakeFileRepo(), newFakeStore(), cfg))
	router := newFileTestRouter(h)

	body, contentType := multipartBody(t, "big.png", "image/png", "way too large")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized file, got %d", w.Code)
	}
}

func TestDeleteAttachment(t *testing.T) {
	repo := newFakeFileRepo()
	store := newFakeStore()
	h := NewFileHandler(appfile.NewService(repo, store, uploadCfg()))
	router := newFileTestRouter(h)

	body, contentType := multipartBody(t, "gone.png", "image/png", "png")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", w.Code)
	}

	payload := strings.NewReader(`{"url":"https://cdn.example.com/gone.png"}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/files", payload)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(store.removed) != 1 || store.removed[0] != "gone.png" {
		t.Errorf("expected object removed, got %+v", store.removed)
	}
	if len(repo.files) != 0 {
		t.Errorf("expected record deleted, got %d", len(repo.files))
	}

	// 重复删除幂等
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/files", strings.NewReader(`{"url":"https://cdn.example.com/gone.png"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected idempotent delete, got %d", w.Code)
	}
}
