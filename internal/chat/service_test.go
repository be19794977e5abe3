package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avelkov/personachat/internal/ai"
	"github.com/avelkov/personachat/internal/common"
	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
	"github.com/avelkov/personachat/internal/store/jsonstore"
)

// recordingProvider captures the last context it was handed and returns a
// scripted reply or error.
type recordingProvider struct {
	reply string
	err   error
	last  []ai.Message
	calls int
}

func (p *recordingProvider) Chat(ctx context.Context, msgs []ai.Message) (string, error) {
	p.calls++
	p.last = msgs
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type fixture struct {
	store     store.Store
	provider  *recordingProvider
	svc       *Service
	character *models.Character
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := jsonstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ch := &models.Character{
		ID:           "char-1",
		Name:         "Sage",
		Description:  "d",
		SystemPrompt: "You are a calm advisor.",
		CreatorID:    "u1",
		IsPublic:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.Characters().Create(context.Background(), ch); err != nil {
		t.Fatalf("seed character: %v", err)
	}

	p := &recordingProvider{reply: "Hello there."}
	return &fixture{
		store:     st,
		provider:  p,
		svc:       NewService(st, p, DefaultContextWindow),
		character: ch,
	}
}

func TestSendMessage_NewChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "hi", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if turn.ChatID == "" {
		t.Fatal("expected a chat id")
	}
	if turn.Message.Role != models.RoleAssistant || turn.Message.Content != "Hello there." {
		t.Fatalf("unexpected reply message: %+v", turn.Message)
	}

	msgs, err := f.svc.History(ctx, "u1", turn.ChatID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Fatalf("expected user+assistant pair, got %+v", msgs)
	}

	// Provider input: system turn plus the new user message.
	if len(f.provider.last) != 2 {
		t.Fatalf("expected 2 context messages, got %d", len(f.provider.last))
	}
	if f.provider.last[0].Role != models.RoleSystem || f.provider.last[0].Content != f.character.SystemPrompt {
		t.Fatalf("context must start with the system prompt, got %+v", f.provider.last[0])
	}
	if last := f.provider.last[len(f.provider.last)-1]; last.Role != models.RoleUser || last.Content != "hi" {
		t.Fatalf("context must end with the new user message, got %+v", last)
	}

	got, err := f.store.Characters().GetByID(ctx, f.character.ID)
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.ChatCount != 1 {
		t.Fatalf("chatCount = %d, want 1", got.ChatCount)
	}
}

func TestSendMessage_ReusesChatForPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "one", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	second, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "two", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if first.ChatID != second.ChatID {
		t.Fatalf("expected one chat per (user, character), got %s and %s", first.ChatID, second.ChatID)
	}

	got, _ := f.store.Characters().GetByID(ctx, f.character.ID)
	if got.ChatCount != 1 {
		t.Fatalf("chatCount = %d, want 1 after reuse", got.ChatCount)
	}

	other, err := f.svc.SendMessage(ctx, "u2", f.character.ID, "hello", "")
	if err != nil {
		t.Fatalf("send as other user: %v", err)
	}
	if other.ChatID == first.ChatID {
		t.Fatal("different users must not share a chat")
	}
}

func TestSendMessage_ContextWindow(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.store, f.provider, 4)
	ctx := context.Background()

	var chatID string
	for i := 0; i < 5; i++ {
		turn, err := f.svc.SendMessage(ctx, "u1", f.character.ID, fmt.Sprintf("msg %d", i), chatID)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		chatID = turn.ChatID
	}

	// 4 stored messages plus the system turn.
	if len(f.provider.last) != 5 {
		t.Fatalf("expected 5 context messages, got %d", len(f.provider.last))
	}
	if f.provider.last[0].Role != models.RoleSystem {
		t.Fatalf("first context message must be system, got %+v", f.provider.last[0])
	}
	if last := f.provider.last[len(f.provider.last)-1]; last.Content != "msg 4" {
		t.Fatalf("context must end with the newest user message, got %q", last.Content)
	}
}

func TestSendMessage_UpstreamFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("boom")
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "hi", "")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	c, err := f.store.Chats().GetByUserAndCharacter(ctx, "u1", f.character.ID)
	if err != nil {
		t.Fatalf("chat should exist: %v", err)
	}
	if len(c.Messages) != 1 || c.Messages[0].Role != models.RoleUser {
		t.Fatalf("user message must stay persisted unpaired, got %+v", c.Messages)
	}
}

func TestSendMessage_EmptyReplyFallsBack(t *testing.T) {
	f := newFixture(t)
	f.provider.reply = "   "
	ctx := context.Background()

	turn, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "hi", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if turn.Message.Content != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", turn.Message.Content)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "  ", ""); !common.IsValidation(err) {
		t.Fatalf("blank message: expected validation error, got %v", err)
	}

	long := make([]byte, 4001)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := f.svc.SendMessage(ctx, "u1", f.character.ID, string(long), ""); !common.IsValidation(err) {
		t.Fatalf("oversized message: expected validation error, got %v", err)
	}
	if f.provider.calls != 0 {
		t.Fatalf("provider must not be called on invalid input, calls = %d", f.provider.calls)
	}

	if _, err := f.svc.SendMessage(ctx, "u1", "no-such-character", "hi", ""); !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}
}

func TestSendMessage_ForeignChatHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "hi", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := f.svc.SendMessage(ctx, "u2", f.character.ID, "hi", turn.ChatID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign chat: expected ErrChatNotFound, got %v", err)
	}
	if _, err := f.svc.History(ctx, "u2", turn.ChatID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign history: expected ErrChatNotFound, got %v", err)
	}
	if _, err := f.svc.History(ctx, "u1", "no-such-chat"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("missing chat: expected ErrChatNotFound, got %v", err)
	}
}

func TestListChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, "u1", f.character.ID, "hi", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	chats, err := f.svc.ListChats(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 1 || chats[0].CharacterID != f.character.ID {
		t.Fatalf("unexpected chats: %+v", chats)
	}

	empty, err := f.svc.ListChats(ctx, "u2")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestJobs_PrepareAndRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.svc.PrepareJob(ctx, "u1", f.character.ID, "hi", "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if job.Status != models.JobQueued || job.ChatID == "" {
		t.Fatalf("unexpected job: %+v", job)
	}

	// User message is already persisted before the worker runs.
	c, err := f.store.Chats().GetByID(ctx, job.ChatID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if len(c.Messages) != 1 {
		t.Fatalf("expected 1 message before run, got %d", len(c.Messages))
	}

	if err := f.svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := f.svc.GetJob(ctx, "u1", job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.JobSucceeded || got.ResultMessageID == nil {
		t.Fatalf("unexpected job after run: %+v", got)
	}

	c, _ = f.store.Chats().GetByID(ctx, job.ChatID)
	if len(c.Messages) != 2 || c.Messages[1].ID != *got.ResultMessageID {
		t.Fatalf("result message id must point at the stored reply, got %+v", c.Messages)
	}

	if _, err := f.svc.GetJob(ctx, "u2", job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("foreign job: expected ErrJobNotFound, got %v", err)
	}
}

func TestJobs_PrepareValidatesLikeSendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.PrepareJob(ctx, "u1", f.character.ID, "   ", ""); !common.IsValidation(err) {
		t.Fatalf("blank message: expected validation error, got %v", err)
	}

	long := make([]byte, 4001)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := f.svc.PrepareJob(ctx, "u1", f.character.ID, string(long), ""); !common.IsValidation(err) {
		t.Fatalf("oversized message: expected validation error, got %v", err)
	}

	// Rejected messages must not create a chat or persist anything.
	if _, err := f.store.Chats().GetByUserAndCharacter(ctx, "u1", f.character.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no chat after rejected prepares, got %v", err)
	}
}

func TestJobs_RunFailureRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.svc.PrepareJob(ctx, "u1", f.character.ID, "hi", "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	f.provider.err = errors.New("boom")
	if err := f.svc.RunJob(ctx, job.ID); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	got, _ := f.svc.GetJob(ctx, "u1", job.ID)
	if got.Status != models.JobFailed || got.Error == nil {
		t.Fatalf("unexpected job after failure: %+v", got)
	}

	if err := f.svc.RunJob(ctx, "no-such-job"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("missing job: expected ErrJobNotFound, got %v", err)
	}
}
