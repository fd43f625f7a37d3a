package service

import (
	"context"

	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/repository"
)

// KnowledgeBaseService exposes the read-only reference library.
type KnowledgeBaseService struct {
	repo repository.KnowledgeBaseRepository
}

// NewKnowledgeBaseService builds the service.
func NewKnowledgeBaseService(repo repository.KnowledgeBaseRepository) *KnowledgeBaseService {
	return &KnowledgeBaseService{repo: repo}
}

// ListSections returns every section with its files.
func (s *KnowledgeBaseService) ListSections(ctx context.Context) ([]domain.KBSection, error) {
	return s.repo.ListSections(ctx)
}

// GetSection returns one section with its files.
func (s *KnowledgeBaseService) GetSection(ctx context.Context, id string) (domain.KBSection, error) {
	return s.repo.GetSection(ctx, id)
}
