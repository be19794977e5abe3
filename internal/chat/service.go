// Package chat orchestrates a conversation turn: resolve the character,
// find or create the chat, persist the user message, call the completion
// provider with a bounded context, and persist the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelkov/personachat/internal/ai"
	"github.com/avelkov/personachat/internal/common"
	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
)

var (
	ErrCharacterNotFound = errors.New("chat: character not found")
	ErrChatNotFound      = errors.New("chat: chat not found")
	ErrUpstream          = errors.New("chat: completion upstream failed")
)

// FallbackReply is substituted when the upstream answers without usable
// content, so the exchange still completes.
const FallbackReply = "I apologize, but I cannot respond right now."

// DefaultContextWindow is the maximum number of stored messages sent to
// the provider on top of the system turn.
const DefaultContextWindow = 10

type Service struct {
	store             store.Store
	provider          ai.Provider
	contextWindowSize int
}

func NewService(st store.Store, provider ai.Provider, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = DefaultContextWindow
	}
	return &Service{store: st, provider: provider, contextWindowSize: contextWindowSize}
}

// Turn is the result of one completed exchange.
type Turn struct {
	ChatID  string
	Message models.Message
}

// resolveChat loads the chat the turn belongs to. With an explicit chatID
// a missing or foreign chat is reported as not found, never as denied.
// Without one, the (user, character) chat is reused when it exists;
// otherwise a fresh chat is created and the character's chat count bumped.
func (s *Service) resolveChat(ctx context.Context, userID string, ch *models.Character, chatID string) (*models.Chat, error) {
	if chatID != "" {
		c, err := s.store.Chats().GetByID(ctx, chatID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrChatNotFound
			}
			return nil, err
		}
		if c.UserID != userID {
			return nil, ErrChatNotFound
		}
		return c, nil
	}

	c, err := s.store.Chats().GetByUserAndCharacter(ctx, userID, ch.ID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	c = &models.Chat{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: ch.ID,
		Messages:    []models.Message{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Chats().Create(ctx, c); err != nil {
		return nil, err
	}
	if err := s.store.Characters().IncrementChatCount(ctx, ch.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func newMessage(role, content string) (*models.Message, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	return &models.Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}, nil
}

// buildContext assembles the provider input: the character's system prompt
// followed by at most contextWindowSize stored messages, oldest first.
func (s *Service) buildContext(ch *models.Character, history []models.Message) []ai.Message {
	recent := history
	if len(recent) > s.contextWindowSize {
		recent = recent[len(recent)-s.contextWindowSize:]
	}
	out := make([]ai.Message, 0, len(recent)+1)
	out = append(out, ai.Message{Role: models.RoleSystem, Content: ch.SystemPrompt})
	for _, m := range recent {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return common.Invalidf("message cannot be empty")
	}
	if len(content) > 4000 {
		return common.Invalidf("message must be at most 4000 characters")
	}
	return nil
}

// SendMessage runs a full turn. On upstream failure the user message stays
// persisted without a paired reply and the error is ErrUpstream.
func (s *Service) SendMessage(ctx context.Context, userID, characterID, content, chatID string) (*Turn, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	ch, chat, err := s.prepareTurn(ctx, userID, characterID, content, chatID)
	if err != nil {
		return nil, err
	}
	return s.completeTurn(ctx, ch, chat)
}

// prepareTurn performs the synchronous half of a turn: resolve character
// and chat, then persist the user message.
func (s *Service) prepareTurn(ctx context.Context, userID, characterID, content, chatID string) (*models.Character, *models.Chat, error) {
	ch, err := s.store.Characters().GetByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrCharacterNotFound
		}
		return nil, nil, err
	}

	chat, err := s.resolveChat(ctx, userID, ch, chatID)
	if err != nil {
		return nil, nil, err
	}

	userMsg, err := newMessage(models.RoleUser, content)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.Chats().AppendMessage(ctx, chat.ID, userMsg); err != nil {
		return nil, nil, err
	}
	chat.Messages = append(chat.Messages, *userMsg)
	return ch, chat, nil
}

// completeTurn calls the provider and persists the assistant reply.
func (s *Service) completeTurn(ctx context.Context, ch *models.Character, chat *models.Chat) (*Turn, error) {
	reply, err := s.provider.Chat(ctx, s.buildContext(ch, chat.Messages))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	assistantMsg, err := newMessage(models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	if err := s.store.Chats().AppendMessage(ctx, chat.ID, assistantMsg); err != nil {
		return nil, err
	}
	return &Turn{ChatID: chat.ID, Message: *assistantMsg}, nil
}

// History returns the messages of one of the user's chats.
func (s *Service) History(ctx context.Context, userID, chatID string) ([]models.Message, error) {
	c, err := s.store.Chats().GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrChatNotFound
	}
	if c.Messages == nil {
		return []models.Message{}, nil
	}
	return c.Messages, nil
}

// ListChats returns the user's chats, most recently updated first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	out, err := s.store.Chats().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Chat{}
	}
	return out, nil
}
