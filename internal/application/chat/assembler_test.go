package chat

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"z-chat-ai-api/internal/application/filecache"
	"z-chat-ai-api/internal/domain/entity"
)

type stubResolver struct {
	mu    sync.Mutex
	refs  map[string]*filecache.Reference
	calls []string
}

func newStubResolver(refs map[string]*filecache.Reference) *stubResolver {
	return &stubResolver{refs: refs}
}

func (r *stubResolver) Resolve(ctx context.Context, fileID string) (*filecache.Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fileID)
	ref, ok := r.refs[fileID]
	if !ok {
		return nil, fmt.Errorf("no remote reference for %s", fileID)
	}
	return ref, nil
}

func TestAssembleFiltersRolesAndMapsAssistant(t *testing.T) {
	a := NewAssembler(newStubResolver(nil))

	prior := []entity.Message{
		{ID: "m1", Role: entity.RoleSystem, Content: "be nice"},
		{ID: "m2", Role: entity.RoleUser, Content: "hello"},
		{ID: "m3", Role: entity.RoleAssistant, Content: "hi there"},
	}
	turns, current, err := a.Assemble(context.Background(), prior, entity.Message{Content: "next"}, nil)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	if len(turns) != 2 {
		t.Fatalf("expected system message dropped, got %d turns", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "model" {
		t.Errorf("unexpected roles: %q, %q", turns[0].Role, turns[1].Role)
	}
	if turns[0].Parts[0].Text != "hello" {
		t.Errorf("unexpected first turn text: %q", turns[0].Parts[0].Text)
	}
	if len(current) != 1 || current[0].Text != "next" {
		t.Errorf("unexpected current parts: %+v", current)
	}
}

func TestAssemblePartOrderFilesBeforeText(t *testing.T) {
	resolver := newStubResolver(map[string]*filecache.Reference{
		"fa": {URI: "providers/files/a", MimeType: "application/pdf"},
		"fb": {URI: "providers/files/b", MimeType: "image/png"},
	})
	a := NewAssembler(resolver)

	prior := []entity.Message{
		{
			ID:      "m1",
			Role:    entity.RoleUser,
			Content: "see attachments",
			Attachments: []entity.Attachment{
				{ID: "fa"},
				{ID: "fb"},
			},
		},
	}
	turns, current, err := a.Assemble(context.Background(), prior, entity.Message{Content: "and this"}, []string{"fa"})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	parts := turns[0].Parts
	if len(parts) != 3 {
		t.Fatalf("expected 2 file parts and 1 text part, got %d", len(parts))
	}
	if parts[0].File == nil || parts[0].File.URI != "providers/files/a" {
		t.Errorf("expected first part to reference fa, got %+v", parts[0])
	}
	if parts[1].File == nil || parts[1].File.URI != "providers/files/b" {
		t.Errorf("expected second part to reference fb, got %+v", parts[1])
	}
	if parts[2].Text != "see attachments" {
		t.Errorf("expected text part last, got %+v", parts[2])
	}

	if len(current) != 2 {
		t.Fatalf("expected file part plus text part, got %d", len(current))
	}
	if current[0].File == nil || current[0].File.URI != "providers/files/a" {
		t.Errorf("expected current file part first, got %+v", current[0])
	}
	if current[1].Text != "and this" {
		t.Errorf("expected current text last, got %+v", current[1])
	}
}

func TestAssembleSkipsUnresolvableHistoryAttachment(t *testing.T) {
	resolver := newStubResolver(map[string]*filecache.Reference{
		"good": {URI: "providers/files/good", MimeType: "image/png"},
	})
	a := NewAssembler(resolver)

	prior := []entity.Message{
		{
			ID:      "m1",
			Role:    entity.RoleUser,
			Content: "mixed",
			Attachments: []entity.Attachment{
				{ID: "gone"},
				{ID: "good"},
			},
		},
	}
	turns, _, err := a.Assemble(context.Background(), prior, entity.Message{Content: "q"}, nil)
	if err != nil {
		t.Fatalf("expected broken history attachment to be skipped, got error: %v", err)
	}

	parts := turns[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected broken attachment dropped, got %d parts", len(parts))
	}
	if parts[0].File == nil || parts[0].File.URI != "providers/files/good" {
		t.Errorf("expected surviving attachment kept, got %+v", parts[0])
	}
}

func TestAssembleSkipsUnresolvableIncomingFile(t *testing.T) {
	resolver := newStubResolver(map[string]*filecache.Reference{
		"good": {URI: "providers/files/good", MimeType: "image/png"},
	})
	a := NewAssembler(resolver)

	_, current, err := a.Assemble(context.Background(), nil, entity.Message{Content: "q"}, []string{"bad", "good"})
	if err != nil {
		t.Fatalf("expected broken incoming attachment to be skipped, got error: %v", err)
	}

	if len(current) != 2 {
		t.Fatalf("expected surviving file part plus text part, got %d parts: %+v", len(current), current)
	}
	if current[0].File == nil || current[0].File.URI != "providers/files/good" {
		t.Errorf("expected surviving attachment first, got %+v", current[0])
	}
	if current[1].Text != "q" {
		t.Errorf("expected text part last, got %+v", current[1])
	}
}

func TestAssembleKeepsEmptyContentTurns(t *testing.T) {
	a := NewAssembler(newStubResolver(nil))

	prior := []entity.Message{
		{ID: "m1", Role: entity.RoleAssistant, Content: ""},
	}
	turns, _, err := a.Assemble(context.Background(), prior, entity.Message{Content: "q"}, nil)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected empty assistant turn preserved, got %d turns", len(turns))
	}
	if turns[0].Role != "model" {
		t.Errorf("expected role preserved on empty turn, got %q", turns[0].Role)
	}
	if len(turns[0].Parts) != 0 {
		t.Errorf("expected empty part list for empty message, got %+v", turns[0].Parts)
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	resolver := newStubResolver(map[string]*filecache.Reference{
		"fa": {URI: "providers/files/a", MimeType: "application/pdf"},
	})
	a := NewAssembler(resolver)

	prior := []entity.Message{
		{ID: "m1", Role: entity.RoleUser, Content: "first", Attachments: []entity.Attachment{{ID: "fa"}}},
		{ID: "m2", Role: entity.RoleAssistant, Content: "second"},
	}
	incoming := entity.Message{Content: "again"}

	first, firstParts, err := a.Assemble(context.Background(), prior, incoming, []string{"fa"})
	if err != nil {
		t.Fatalf("first Assemble returned error: %v", err)
	}
	second, secondParts, err := a.Assemble(context.Background(), prior, incoming, []string{"fa"})
	if err != nil {
		t.Fatalf("second Assemble returned error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("history differs between identical calls:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(firstParts, secondParts) {
		t.Errorf("current parts differ between identical calls:\n%+v\n%+v", firstParts, secondParts)
	}
}
