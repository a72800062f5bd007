package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"assistanthub/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("cannot open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreate(t *testing.T, s *SQLiteStore, id, name string) domain.Assistant {
	t.Helper()
	a := domain.Assistant{ID: id, Name: name, WebhookURL: "https://example.com/hook"}
	if err := s.CreateAssistant(context.Background(), a); err != nil {
		t.Fatalf("cannot create assistant: %v", err)
	}
	return a
}

func TestAssistantCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "a1", "First")

	got, err := s.GetAssistant(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "First" || got.WebhookURL != "https://example.com/hook" {
		t.Errorf("unexpected assistant: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be populated")
	}

	got.Name = "Renamed"
	got.WebhookURL = "https://example.com/v2"
	if err := s.UpdateAssistant(ctx, *got); err != nil {
		t.Fatal(err)
	}
	updated, err := s.GetAssistant(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Renamed" || updated.WebhookURL != "https://example.com/v2" {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := s.DeleteAssistant(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetAssistant(ctx, "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAssistantNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetAssistant(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get: expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateAssistant(ctx, domain.Assistant{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteAssistant(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}
}

func TestListAssistants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	list, err := s.ListAssistants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}

	mustCreate(t, s, "a1", "One")
	mustCreate(t, s, "a2", "Two")

	list, err = s.ListAssistants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assistants, got %d", len(list))
	}
}

func TestConversationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "a1", "Bot")

	msgs := []domain.Message{
		domain.UserMessage("hello"),
		{
			Role:        domain.RoleAssistant,
			Content:     "hi there",
			Images:      []string{"https://example.com/a.png", "data:image/png;base64,Zg=="},
			Links:       []string{"https://example.com/doc"},
			Attachments: []json.RawMessage{json.RawMessage(`{"name":"f.pdf"}`)},
			Sources:     []json.RawMessage{json.RawMessage(`"kb-1"`)},
		},
	}
	if err := s.Save(ctx, "a1", msgs); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Role != domain.RoleUser || got[0].Content != "hello" {
		t.Errorf("user turn mangled: %+v", got[0])
	}
	m := got[1]
	if len(m.Images) != 2 || m.Images[0] != "https://example.com/a.png" {
		t.Errorf("images not preserved: %v", m.Images)
	}
	if len(m.Links) != 1 || m.Links[0] != "https://example.com/doc" {
		t.Errorf("links not preserved: %v", m.Links)
	}
	if len(m.Attachments) != 1 || string(m.Attachments[0]) != `{"name":"f.pdf"}` {
		t.Errorf("attachments not preserved verbatim: %v", m.Attachments)
	}
	if len(m.Sources) != 1 || string(m.Sources[0]) != `"kb-1"` {
		t.Errorf("sources not preserved verbatim: %v", m.Sources)
	}
}

func TestSaveReplacesExistingLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "a1", "Bot")

	if err := s.Save(ctx, "a1", []domain.Message{domain.UserMessage("old")}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "a1", []domain.Message{domain.UserMessage("new")}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "new" {
		t.Errorf("save should replace the log, got %+v", got)
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "a1", "Bot")

	if err := s.Append(ctx, "a1", domain.UserMessage("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "a1", domain.AssistantText("two"), domain.UserMessage("three")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("position %d: want %q, got %q", i, w, got[i].Content)
		}
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "a1", "Bot")

	if err := s.Append(ctx, "a1", domain.UserMessage("hello")); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty log after clear, got %d", len(got))
	}

	// Clearing an unknown assistant is not an error.
	if err := s.Clear(ctx, "missing"); err != nil {
		t.Errorf("clear on unknown id: %v", err)
	}
}

func TestDeleteAssistantCascadesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "a1", "Bot")
	mustCreate(t, s, "a2", "Other")

	if err := s.Append(ctx, "a1", domain.UserMessage("hello")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "a2", domain.UserMessage("keep me")); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteAssistant(ctx, "a1"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("messages should cascade on delete, got %d", len(got))
	}

	kept, err := s.Load(ctx, "a2")
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 {
		t.Errorf("other assistant's log must survive, got %d", len(kept))
	}
}
