package models

import "time"

// JSON tags match the on-disk collection format; gorm tags drive the
// relational backend. Both backends share these structs.

type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (User) TableName() string { return "users" }

type Character struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	SystemPrompt string    `gorm:"type:text;not null" json:"systemPrompt"`
	CreatorID    string    `gorm:"type:varchar(36);index;not null" json:"creatorId"`
	IsPublic     bool      `gorm:"not null" json:"isPublic"`
	Avatar       string    `gorm:"type:text" json:"avatar"`
	CreatedAt    time.Time `json:"createdAt"`
	ChatCount    int       `gorm:"not null" json:"chatCount"`
}

func (Character) TableName() string { return "characters" }

type Chat struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(36);index:idx_chats_user_character,priority:1;not null" json:"userId"`
	CharacterID string    `gorm:"type:varchar(36);index:idx_chats_user_character,priority:2;not null" json:"characterId"`
	Messages    []Message `gorm:"foreignKey:ChatID;references:ID" json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Chat) TableName() string { return "chats" }

// Message ids are ULIDs, so append order and lexicographic id order agree.
type Message struct {
	ID        string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	ChatID    string    `gorm:"type:varchar(36);index;not null" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (Message) TableName() string { return "chat_messages" }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job tracks one queued assistant turn handled by the worker.
type Job struct {
	ID          string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	ChatID      string    `gorm:"type:varchar(36);index;not null" json:"chatId"`
	CharacterID string    `gorm:"type:varchar(36);not null" json:"characterId"`
	Status      JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"type:varchar(26)" json:"resultMessageId,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Job) TableName() string { return "chat_jobs" }
