// Package gormstore implements the storage contracts on a relational
// database via gorm. Chats are stored as a row table with a message child
// table and reassembled into the nested shape on read.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
)

type Store struct {
	db *gorm.DB
}

// Open connects using the given driver ("sqlite" or "mysql") and migrates
// the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, errors.New("gormstore: unsupported driver " + driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

// NewStore wraps an existing gorm connection (used by tests).
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.User{}, &models.Character{}, &models.Chat{}, &models.Message{}, &models.Job{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Users() store.UserRepo           { return &userRepo{db: s.db} }
func (s *Store) Characters() store.CharacterRepo { return &characterRepo{db: s.db} }
func (s *Store) Chats() store.ChatRepo           { return &chatRepo{db: s.db} }
func (s *Store) Jobs() store.JobRepo             { return &jobRepo{db: s.db} }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicate
	}
	return err
}

// users

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ? OR LOWER(username) = ?",
			strings.ToLower(u.Email), strings.ToLower(u.Username)).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return store.ErrDuplicate
	}
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// characters

type characterRepo struct {
	db *gorm.DB
}

func (r *characterRepo) Create(ctx context.Context, ch *models.Character) error {
	return translate(r.db.WithContext(ctx).Create(ch).Error)
}

func (r *characterRepo) GetByID(ctx context.Context, id string) (*models.Character, error) {
	var ch models.Character
	if err := r.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &ch, nil
}

func (r *characterRepo) List(ctx context.Context, f store.CharacterFilter) ([]models.Character, error) {
	q := r.db.WithContext(ctx).Model(&models.Character{})
	if f.CreatorID != "" {
		q = q.Where("creator_id = ?", f.CreatorID)
	}
	if f.PublicOnly {
		q = q.Where("is_public = ?", true)
	}
	if f.VisibleTo != "" {
		q = q.Where("is_public = ? OR creator_id = ?", true, f.VisibleTo)
	}
	if f.Search != "" {
		term := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", term, term)
	}
	var out []models.Character
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *characterRepo) Update(ctx context.Context, ch *models.Character) error {
	res := r.db.WithContext(ctx).Model(&models.Character{}).
		Where("id = ?", ch.ID).
		// chat_count is owned by IncrementChatCount; a stale struct must
		// not overwrite it.
		Select("name", "description", "system_prompt", "is_public", "avatar").
		Updates(ch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *characterRepo) IncrementChatCount(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Character{}).
		Where("id = ?", id).
		UpdateColumn("chat_count", gorm.Expr("chat_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *characterRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Character{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// chats

type chatRepo struct {
	db *gorm.DB
}

func (r *chatRepo) Create(ctx context.Context, c *models.Chat) error {
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *chatRepo) load(ctx context.Context, q *gorm.DB) (*models.Chat, error) {
	var c models.Chat
	if err := q.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return &c, nil
}

func (r *chatRepo) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	return r.load(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *chatRepo) GetByUserAndCharacter(ctx context.Context, userID, characterID string) (*models.Chat, error) {
	return r.load(ctx, r.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID))
}

func (r *chatRepo) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	var out []models.Chat
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatRepo) AppendMessage(ctx context.Context, chatID string, m *models.Message) error {
	m.ChatID = chatID
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&models.Chat{}).Where("id = ?", chatID).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt == 0 {
			return store.ErrNotFound
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", chatID).
			UpdateColumn("updated_at", time.Now().UTC()).Error
	})
}

func (r *chatRepo) DeleteByCharacter(ctx context.Context, characterID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Chat{}).
			Where("character_id = ?", characterID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Delete(&models.Message{}, "chat_id IN ?", ids).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Chat{}, "id IN ?", ids).Error
	})
}

// jobs

type jobRepo struct {
	db *gorm.DB
}

func (r *jobRepo) Create(ctx context.Context, j *models.Job) error {
	return translate(r.db.WithContext(ctx).Create(j).Error)
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

func (r *jobRepo) MarkRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobQueued).
		Update("status", models.JobRunning).Error
}

func (r *jobRepo) MarkSucceeded(ctx context.Context, id string, resultMessageID string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            models.JobSucceeded,
			"result_message_id": resultMessageID,
			"error":             nil,
		}).Error
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            models.JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}
