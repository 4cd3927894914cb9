package service

import (
	"context"
	"fmt"

	"github.com/lawrencecchen/autobuild/internal/adapter/llm"
	"github.com/lawrencecchen/autobuild/internal/domain"
)

// CreateSession opens a session.
func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	return s.sessions.Create(ctx, req.SessionID, req.UserID)
}

// GetSession returns the current snapshot of a session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

// ListModels returns the models of the completion provider.
func (s *Service) ListModels(ctx context.Context) ([]llm.Model, error) {
	models, err := s.llmClient.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return models, nil
}

// ListTools returns the actions offered to the model.
func (s *Service) ListTools() *domain.ListToolsResponse {
	defs := s.registry.Definitions()
	items := make([]domain.ToolListItem, 0, len(defs))
	for _, def := range defs {
		items = append(items, domain.ToolListItem{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return &domain.ListToolsResponse{Tools: items}
}
