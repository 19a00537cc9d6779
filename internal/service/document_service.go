package service

import (
	"context"

	"github.com/zlynx/assistkb/internal/model"
	"github.com/zlynx/assistkb/internal/repo"
)

type DocumentService struct {
	documents *repo.DocumentRepo
}

func NewDocumentService(documents *repo.DocumentRepo) *DocumentService {
	return &DocumentService{documents: documents}
}

func (s *DocumentService) List(ctx context.Context, assistantID string) ([]model.Document, error) {
	return s.documents.ListByAssistant(ctx, assistantID)
}
