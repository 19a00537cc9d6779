package service

import (
	"context"
	"strings"
	"time"

	"github.com/zlynx/assistkb/internal/model"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
	"github.com/zlynx/assistkb/internal/repo"
)

type AssistantService struct {
	assistants *repo.AssistantRepo
	ingest     *IngestService
}

func NewAssistantService(assistants *repo.AssistantRepo, ingest *IngestService) *AssistantService {
	return &AssistantService{assistants: assistants, ingest: ingest}
}

func (s *AssistantService) Create(ctx context.Context, userID, name, instructions string) (*model.Assistant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	now := time.Now().Unix()
	item := &model.Assistant{
		ID:           newID(),
		UserID:       userID,
		Name:         name,
		Instructions: strings.TrimSpace(instructions),
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.assistants.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *AssistantService) Get(ctx context.Context, userID, id string) (*model.Assistant, error) {
	return s.assistants.GetByID(ctx, userID, id)
}

func (s *AssistantService) List(ctx context.Context, userID string) ([]model.Assistant, error) {
	return s.assistants.ListByUser(ctx, userID)
}

func (s *AssistantService) Update(ctx context.Context, userID, id, name, instructions string) (*model.Assistant, error) {
	item, err := s.assistants.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		item.Name = name
	}
	item.Instructions = strings.TrimSpace(instructions)
	item.Mtime = time.Now().Unix()
	if err := s.assistants.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes the assistant together with its whole knowledge base.
func (s *AssistantService) Delete(ctx context.Context, userID, id string) (*ResetResult, error) {
	if _, err := s.assistants.GetByID(ctx, userID, id); err != nil {
		return nil, err
	}
	result, err := s.ingest.Reset(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.assistants.Delete(ctx, userID, id); err != nil {
		return nil, err
	}
	return result, nil
}
