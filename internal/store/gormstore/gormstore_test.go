package gormstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
)

var dbSeq int

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:gormstore_test_%d?mode=memory&cache=shared", dbSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestUsers_CaseInsensitiveLookups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := &models.User{ID: "u1", Email: "A@X.com", Username: "Alice", PasswordHash: "h", CreatedAt: time.Now()}
	if err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Users().GetByEmail(ctx, "a@x.COM"); err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if _, err := s.Users().GetByUsername(ctx, "ALICE"); err != nil {
		t.Fatalf("get by username: %v", err)
	}

	dup := &models.User{ID: "u2", Email: "a@x.com", Username: "other", PasswordHash: "h"}
	if err := s.Users().Create(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if _, err := s.Users().GetByID(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCharacters_ListFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mk := func(id, creator string, public bool, name string) {
		t.Helper()
		err := s.Characters().Create(ctx, &models.Character{
			ID: id, Name: name, Description: "d", SystemPrompt: "p",
			CreatorID: creator, IsPublic: public, CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	mk("c1", "u1", true, "Helper")
	mk("c2", "u1", false, "Secret")
	mk("c3", "u2", true, "Tutor")

	pub, err := s.Characters().List(ctx, store.CharacterFilter{PublicOnly: true})
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if len(pub) != 2 {
		t.Fatalf("expected 2 public, got %d", len(pub))
	}

	vis, err := s.Characters().List(ctx, store.CharacterFilter{VisibleTo: "u2"})
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(vis) != 2 {
		t.Fatalf("expected 2 visible to u2, got %d", len(vis))
	}

	mine, err := s.Characters().List(ctx, store.CharacterFilter{CreatorID: "u1", VisibleTo: "u1"})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 for creator u1, got %d", len(mine))
	}

	found, err := s.Characters().List(ctx, store.CharacterFilter{PublicOnly: true, Search: "tut"})
	if err != nil {
		t.Fatalf("list search: %v", err)
	}
	if len(found) != 1 || found[0].ID != "c3" {
		t.Fatalf("expected c3 for search, got %+v", found)
	}
}

func TestCharacters_UpdateKeepsChatCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ch := &models.Character{
		ID: "c1", Name: "Sage", Description: "d", SystemPrompt: "p",
		CreatorID: "u1", IsPublic: true, CreatedAt: time.Now(),
	}
	if err := s.Characters().Create(ctx, ch); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Counter bumped after the caller loaded its copy.
	if err := s.Characters().IncrementChatCount(ctx, "c1"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	ch.Name = "Oracle"
	if err := s.Characters().Update(ctx, ch); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Characters().GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Oracle" {
		t.Fatalf("name = %q, want Oracle", got.Name)
	}
	if got.ChatCount != 1 {
		t.Fatalf("chatCount = %d, want 1 (stale update must not reset it)", got.ChatCount)
	}
}

func TestChats_AppendAndReassemble(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Now().UTC().Add(-time.Hour)
	if err := s.Chats().Create(ctx, &models.Chat{ID: "ch1", UserID: "u1", CharacterID: "c1", CreatedAt: created, UpdatedAt: created}); err != nil {
		t.Fatalf("create chat: %v", err)
	}

	// ULID-shaped ids: lexicographic order equals append order.
	ids := []string{"01A", "01B", "01C"}
	for i, id := range ids {
		m := &models.Message{ID: id, Role: models.RoleUser, Content: fmt.Sprintf("m%d", i), Timestamp: time.Now()}
		if err := s.Chats().AppendMessage(ctx, "ch1", m); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	got, err := s.Chats().GetByID(ctx, "ch1")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	for i, id := range ids {
		if got.Messages[i].ID != id {
			t.Fatalf("message %d id = %s, want %s", i, got.Messages[i].ID, id)
		}
	}
	if !got.UpdatedAt.After(created) {
		t.Fatalf("expected updatedAt bump, got %v", got.UpdatedAt)
	}

	if err := s.Chats().AppendMessage(ctx, "missing", &models.Message{ID: "01Z"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	byPair, err := s.Chats().GetByUserAndCharacter(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get by pair: %v", err)
	}
	if byPair.ID != "ch1" || len(byPair.Messages) != 3 {
		t.Fatalf("unexpected pair lookup result: %s with %d messages", byPair.ID, len(byPair.Messages))
	}
}

func TestChats_DeleteByCharacter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Chats().Create(ctx, &models.Chat{ID: "ch1", UserID: "u1", CharacterID: "c1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Chats().AppendMessage(ctx, "ch1", &models.Message{ID: "01A", Role: models.RoleUser, Content: "hi", Timestamp: time.Now()}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Chats().Create(ctx, &models.Chat{ID: "ch2", UserID: "u1", CharacterID: "c2"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Chats().DeleteByCharacter(ctx, "c1"); err != nil {
		t.Fatalf("delete by character: %v", err)
	}
	if _, err := s.Chats().GetByID(ctx, "ch1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ch1 gone, got %v", err)
	}
	if _, err := s.Chats().GetByID(ctx, "ch2"); err != nil {
		t.Fatalf("expected ch2 kept: %v", err)
	}
}

func TestJobs_StatusTransitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := &models.Job{ID: "01J", UserID: "u1", ChatID: "ch1", CharacterID: "c1", Status: models.JobQueued}
	if err := s.Jobs().Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Jobs().MarkRunning(ctx, "01J"); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := s.Jobs().MarkSucceeded(ctx, "01J", "01M"); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	got, err := s.Jobs().GetByID(ctx, "01J")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.JobSucceeded || got.ResultMessageID == nil || *got.ResultMessageID != "01M" {
		t.Fatalf("unexpected job: %+v", got)
	}
}
