// Package store defines the storage contracts shared by the JSON-file and
// gorm backends. Repositories trust their callers: ownership and visibility
// rules live in the service layer.
package store

import (
	"context"
	"errors"

	"github.com/avelkov/personachat/internal/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: record already exists")
)

type Store interface {
	Users() UserRepo
	Characters() CharacterRepo
	Chats() ChatRepo
	Jobs() JobRepo
	Close() error
}

type UserRepo interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// Email and username lookups are case-insensitive.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// CharacterFilter narrows List results. Zero value means all characters.
type CharacterFilter struct {
	// CreatorID restricts to one creator.
	CreatorID string
	// VisibleTo keeps public characters plus those created by the given
	// user. Empty string with PublicOnly unset means no visibility filter.
	VisibleTo string
	// PublicOnly keeps public characters regardless of viewer.
	PublicOnly bool
	// Search keeps characters whose name or description contains the term
	// (case-insensitive).
	Search string
}

type CharacterRepo interface {
	Create(ctx context.Context, ch *models.Character) error
	GetByID(ctx context.Context, id string) (*models.Character, error)
	List(ctx context.Context, f CharacterFilter) ([]models.Character, error)
	// Update replaces the editable fields. The chat count is owned by
	// IncrementChatCount and never written here.
	Update(ctx context.Context, ch *models.Character) error
	IncrementChatCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type ChatRepo interface {
	Create(ctx context.Context, c *models.Chat) error
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	GetByUserAndCharacter(ctx context.Context, userID, characterID string) (*models.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]models.Chat, error)
	// AppendMessage adds the message and bumps the chat's updated
	// timestamp. The message must carry its id and timestamp already.
	AppendMessage(ctx context.Context, chatID string, m *models.Message) error
	DeleteByCharacter(ctx context.Context, characterID string) error
}

type JobRepo interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkSucceeded(ctx context.Context, id string, resultMessageID string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}
