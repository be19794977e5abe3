// Package character implements persona CRUD and the visibility rules
// around it. Disclosure policy: a character the requester may not see is
// reported as not found, and list results silently omit it, so private
// personas never leak their existence.
package character

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelkov/personachat/internal/common"
	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
)

var (
	ErrNotFound     = errors.New("character: not found")
	ErrAccessDenied = errors.New("character: access denied")
)

// DefaultAvatar is used when a character is created without one.
const DefaultAvatar = "https://placehold.co/256x256?text=Persona"

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

type CreateInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"systemPrompt"`
	IsPublic     bool   `json:"isPublic"`
	Avatar       string `json:"avatar"`
}

func (in *CreateInput) validate() error {
	if n := len(strings.TrimSpace(in.Name)); n < 1 || n > 100 {
		return common.Invalidf("name must be 1-100 characters")
	}
	if n := len(in.Description); n < 1 || n > 500 {
		return common.Invalidf("description must be 1-500 characters")
	}
	if n := len(in.SystemPrompt); n < 1 || n > 2000 {
		return common.Invalidf("systemPrompt must be 1-2000 characters")
	}
	if in.Avatar != "" {
		if _, err := url.ParseRequestURI(in.Avatar); err != nil {
			return common.Invalidf("avatar must be a valid URL")
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, creatorID string, in CreateInput) (*models.Character, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	avatar := in.Avatar
	if avatar == "" {
		avatar = DefaultAvatar
	}
	ch := &models.Character{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		SystemPrompt: in.SystemPrompt,
		CreatorID:    creatorID,
		IsPublic:     in.IsPublic,
		Avatar:       avatar,
		CreatedAt:    time.Now().UTC(),
		ChatCount:    0,
	}
	if err := s.store.Characters().Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Get returns the character when it is public or owned by requesterID.
// requesterID may be empty for anonymous requests.
func (s *Service) Get(ctx context.Context, requesterID, id string) (*models.Character, error) {
	ch, err := s.store.Characters().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !ch.IsPublic && ch.CreatorID != requesterID {
		return nil, ErrNotFound
	}
	return ch, nil
}

type ListFilter struct {
	// CreatorID restricts results to one creator.
	CreatorID string
	// Search filters public results by a name/description substring.
	Search string
}

// List returns the characters visible to requesterID under the filter.
func (s *Service) List(ctx context.Context, requesterID string, f ListFilter) ([]models.Character, error) {
	sf := store.CharacterFilter{
		CreatorID: f.CreatorID,
		Search:    f.Search,
	}
	if requesterID == "" {
		sf.PublicOnly = true
	} else {
		sf.VisibleTo = requesterID
	}
	out, err := s.store.Characters().List(ctx, sf)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Character{}
	}
	return out, nil
}

type UpdateInput struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	SystemPrompt *string `json:"systemPrompt"`
	IsPublic     *bool   `json:"isPublic"`
	Avatar       *string `json:"avatar"`
}

// Update merges the set fields into the stored record. Only the creator
// may update; anyone else gets ErrAccessDenied when they could see the
// record and ErrNotFound when they could not.
func (s *Service) Update(ctx context.Context, requesterID, id string, in UpdateInput) (*models.Character, error) {
	ch, err := s.Get(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if ch.CreatorID != requesterID {
		return nil, ErrAccessDenied
	}

	merged := CreateInput{
		Name:         ch.Name,
		Description:  ch.Description,
		SystemPrompt: ch.SystemPrompt,
		IsPublic:     ch.IsPublic,
		Avatar:       ch.Avatar,
	}
	if in.Name != nil {
		merged.Name = *in.Name
	}
	if in.Description != nil {
		merged.Description = *in.Description
	}
	if in.SystemPrompt != nil {
		merged.SystemPrompt = *in.SystemPrompt
	}
	if in.IsPublic != nil {
		merged.IsPublic = *in.IsPublic
	}
	if in.Avatar != nil {
		merged.Avatar = *in.Avatar
	}
	if err := merged.validate(); err != nil {
		return nil, err
	}

	ch.Name = strings.TrimSpace(merged.Name)
	ch.Description = merged.Description
	ch.SystemPrompt = merged.SystemPrompt
	ch.IsPublic = merged.IsPublic
	ch.Avatar = merged.Avatar
	if err := s.store.Characters().Update(ctx, ch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ch, nil
}

// Delete removes the character and its chats. Creator only.
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	ch, err := s.Get(ctx, requesterID, id)
	if err != nil {
		return err
	}
	if ch.CreatorID != requesterID {
		return ErrAccessDenied
	}
	if err := s.store.Characters().Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.store.Chats().DeleteByCharacter(ctx, id)
}
