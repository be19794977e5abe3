package chat

import (
	"context"
	"errors"

	"github.com/avelkov/personachat/internal/common"
	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
)

var ErrJobNotFound = errors.New("chat: job not found")

// PrepareJob runs the synchronous half of a turn (character/chat
// resolution plus user-message persistence) and records a queued job for
// the worker to finish.
func (s *Service) PrepareJob(ctx context.Context, userID, characterID, content, chatID string) (*models.Job, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	ch, chat, err := s.prepareTurn(ctx, userID, characterID, content, chatID)
	if err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &models.Job{
		ID:          id,
		UserID:      userID,
		ChatID:      chat.ID,
		CharacterID: ch.ID,
		Status:      models.JobQueued,
	}
	if err := s.store.Jobs().Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// RunJob executes the provider half of a queued turn and records the
// outcome on the job row.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	jobs := s.store.Jobs()
	_ = jobs.MarkRunning(ctx, jobID)

	job, err := jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	ch, err := s.store.Characters().GetByID(ctx, job.CharacterID)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, "character not found")
		return ErrCharacterNotFound
	}
	chat, err := s.store.Chats().GetByID(ctx, job.ChatID)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, "chat not found")
		return ErrChatNotFound
	}

	turn, err := s.completeTurn(ctx, ch, chat)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, err.Error())
		return err
	}
	return jobs.MarkSucceeded(ctx, jobID, turn.Message.ID)
}

// GetJob returns one of the user's jobs; other users' jobs stay hidden.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*models.Job, error) {
	job, err := s.store.Jobs().GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}
