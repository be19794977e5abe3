// Package jsonstore persists each collection as a single JSON array file
// under a data directory. Reads fail soft: a missing or unparsable file is
// an empty collection. Writes rewrite the whole file. A per-collection
// mutex serializes read-modify-write cycles within the process; cross-process
// safety is out of scope.
package jsonstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
)

const (
	usersFile      = "users.json"
	charactersFile = "characters.json"
	chatsFile      = "chats.json"
	jobsFile       = "jobs.json"
)

type Store struct {
	dir string

	usersMu      sync.Mutex
	charactersMu sync.Mutex
	chatsMu      sync.Mutex
	jobsMu       sync.Mutex
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Users() store.UserRepo           { return (*userRepo)(s) }
func (s *Store) Characters() store.CharacterRepo { return (*characterRepo)(s) }
func (s *Store) Chats() store.ChatRepo           { return (*chatRepo)(s) }
func (s *Store) Jobs() store.JobRepo             { return (*jobRepo)(s) }
func (s *Store) Close() error                    { return nil }

func loadAll[T any](s *Store, filename string) []T {
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func saveAll[T any](s *Store, filename string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, filename)
	tmp, err := os.CreateTemp(s.dir, filename+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// users

type userRepo Store

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	s := (*Store)(r)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users := loadAll[models.User](s, usersFile)
	for _, existing := range users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return store.ErrDuplicate
		}
	}
	users = append(users, *u)
	return saveAll(s, usersFile, users)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	s := (*Store)(r)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	for _, u := range loadAll[models.User](s, usersFile) {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s := (*Store)(r)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	for _, u := range loadAll[models.User](s, usersFile) {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s := (*Store)(r)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	for _, u := range loadAll[models.User](s, usersFile) {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

// characters

type characterRepo Store

func (r *characterRepo) Create(ctx context.Context, ch *models.Character) error {
	s := (*Store)(r)
	s.charactersMu.Lock()
	defer s.charactersMu.Unlock()

	characters := loadAll[models.Character](s, charactersFile)
	characters = append(characters, *ch)
	return saveAll(s, charactersFile, characters)
}

func (r *characterRepo) GetByID(ctx context.Context, id string) (*models.Character, error) {
	s := (*Store)(r)
	s.charactersMu.Lock()
	defer s.charactersMu.Unlock()

	for _, ch := range loadAll[models.Character](s, charactersFile) {
		if ch.ID == id {
			return &ch, nil
		}
	}
	return nil, store.ErrNotFound
}

func matchesFilter(ch models.Character, f store.CharacterFilter) bool {
	if f.CreatorID != "" && ch.CreatorID != f.CreatorID {
		return false
	}
	if f.PublicOnly && !ch.IsPublic {
		return false
	}
	if f.VisibleTo != "" && !ch.IsPublic && ch.CreatorID != f.VisibleTo {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(ch.Name), q) &&
			!strings.Contains(strings.ToLower(ch.Description), q) {
			return false
		}
	}
	return true
}

func (r *characterRepo) List(ctx context.Context, f store.CharacterFilter) ([]models.Character, error) {
	s := (*Store)(r)
	s.charactersMu.Lock()
	defer s.charactersMu.Unlock()

	var out []models.Character
	for _, ch := range loadAll[models.Character](s, charactersFile) {
		if matchesFilter(ch, f) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (r *characterRepo) Update(ctx context.Context, ch *models.Character) error {
	s := (*Store)(r)
	s.charactersMu.Lock()
	defer s.charactersMu.Unlock()

	characters := loadAll[models.Character](s, charactersFile)
	for i := range characters {
		if characters[i].ID == ch.ID {
			// chat_count is owned by IncrementChatCount; keep the stored
			// value rather than whatever the caller's copy carries.
			updated := *ch
			updated.ChatCount = characters[i].ChatCount
			characters[i] = updated
			return saveAll(s, charactersFile, characters)
		}
	}
	return store.ErrNotFound
}

func (r *characterRepo) IncrementChatCount(ctx context.Context, id string) error {
	s := (*Store)(r)
	s.charactersMu.Lock()
	defer s.charactersMu.Unlock()

	characters := loadAll[models.Character](s, charactersFile)
	for i := range characters {
		if characters[i].ID == id {
			characters[i].ChatCount++
			return saveAll(s, charactersFile, characters)
		}
	}
	return store.ErrNotFound
}

func (r *characterRepo) Delete(ctx context.Context, id string) error {
	s := (*Store)(r)
	s.charactersMu.Lock()
	defer s.charactersMu.Unlock()

	characters := loadAll[models.Character](s, charactersFile)
	kept := characters[:0]
	for _, ch := range characters {
		if ch.ID != id {
			kept = append(kept, ch)
		}
	}
	if len(kept) == len(characters) {
		return store.ErrNotFound
	}
	return saveAll(s, charactersFile, kept)
}

// chats

type chatRepo Store

func (r *chatRepo) Create(ctx context.Context, c *models.Chat) error {
	s := (*Store)(r)
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	chats := loadAll[models.Chat](s, chatsFile)
	chats = append(chats, *c)
	return saveAll(s, chatsFile, chats)
}

func (r *chatRepo) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	s := (*Store)(r)
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	for _, c := range loadAll[models.Chat](s, chatsFile) {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *chatRepo) GetByUserAndCharacter(ctx context.Context, userID, characterID string) (*models.Chat, error) {
	s := (*Store)(r)
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	for _, c := range loadAll[models.Chat](s, chatsFile) {
		if c.UserID == userID && c.CharacterID == characterID {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *chatRepo) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	s := (*Store)(r)
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	var out []models.Chat
	for _, c := range loadAll[models.Chat](s, chatsFile) {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *chatRepo) AppendMessage(ctx context.Context, chatID string, m *models.Message) error {
	s := (*Store)(r)
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	chats := loadAll[models.Chat](s, chatsFile)
	for i := range chats {
		if chats[i].ID == chatID {
			m.ChatID = chatID
			chats[i].Messages = append(chats[i].Messages, *m)
			chats[i].UpdatedAt = time.Now().UTC()
			return saveAll(s, chatsFile, chats)
		}
	}
	return store.ErrNotFound
}

func (r *chatRepo) DeleteByCharacter(ctx context.Context, characterID string) error {
	s := (*Store)(r)
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	chats := loadAll[models.Chat](s, chatsFile)
	kept := chats[:0]
	for _, c := range chats {
		if c.CharacterID != characterID {
			kept = append(kept, c)
		}
	}
	return saveAll(s, chatsFile, kept)
}

// jobs

type jobRepo Store

func (r *jobRepo) Create(ctx context.Context, j *models.Job) error {
	s := (*Store)(r)
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	jobs := loadAll[models.Job](s, jobsFile)
	jobs = append(jobs, *j)
	return saveAll(s, jobsFile, jobs)
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	s := (*Store)(r)
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, j := range loadAll[models.Job](s, jobsFile) {
		if j.ID == id {
			return &j, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *jobRepo) update(id string, apply func(*models.Job)) error {
	s := (*Store)(r)
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	jobs := loadAll[models.Job](s, jobsFile)
	for i := range jobs {
		if jobs[i].ID == id {
			apply(&jobs[i])
			jobs[i].UpdatedAt = time.Now().UTC()
			return saveAll(s, jobsFile, jobs)
		}
	}
	return store.ErrNotFound
}

func (r *jobRepo) MarkRunning(ctx context.Context, id string) error {
	return r.update(id, func(j *models.Job) {
		if j.Status == models.JobQueued {
			j.Status = models.JobRunning
		}
	})
}

func (r *jobRepo) MarkSucceeded(ctx context.Context, id string, resultMessageID string) error {
	return r.update(id, func(j *models.Job) {
		j.Status = models.JobSucceeded
		j.ResultMessageID = &resultMessageID
		j.Error = nil
	})
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.update(id, func(j *models.Job) {
		j.Status = models.JobFailed
		j.Error = &errMsg
		j.ResultMessageID = nil
	})
}
