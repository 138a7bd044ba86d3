package service

import (
	"context"
	"fmt"
	"strings"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"

	"go.uber.org/zap"
)

// UnlockService records email-only grants for email-gated tools. The email
// is not verified, so a grant is only as strong as the address typed in.
type UnlockService interface {
	Unlock(ctx context.Context, email, toolID string) (*dto.UnlockResponse, error)
	IsUnlocked(ctx context.Context, email, toolID string) (*dto.UnlockResponse, error)
}

type unlockServiceImpl struct {
	unlockRepo  repository.UnlockRepository
	contentRepo repository.ContentRepository
}

func NewUnlockService(unlockRepo repository.UnlockRepository, contentRepo repository.ContentRepository) UnlockService {
	return &unlockServiceImpl{
		unlockRepo:  unlockRepo,
		contentRepo: contentRepo,
	}
}

func (s *unlockServiceImpl) Unlock(ctx context.Context, email, toolID string) (*dto.UnlockResponse, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	tool, err := s.findTool(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if tool.Gating != model.GatingEmail {
		return nil, apperr.Validation("tool %q cannot be unlocked by email", tool.Slug)
	}

	if err := s.unlockRepo.Create(ctx, email, tool.ID); err != nil {
		return nil, fmt.Errorf("create unlock: %w", err)
	}

	logger.Get().Info("tool unlocked", zap.String("tool_id", tool.ID))
	return &dto.UnlockResponse{Unlocked: true, ToolID: tool.ID}, nil
}

func (s *unlockServiceImpl) IsUnlocked(ctx context.Context, email, toolID string) (*dto.UnlockResponse, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	tool, err := s.findTool(ctx, toolID)
	if err != nil {
		return nil, err
	}

	ok, err := s.unlockRepo.Exists(ctx, email, tool.ID)
	if err != nil {
		return nil, fmt.Errorf("check unlock: %w", err)
	}
	return &dto.UnlockResponse{Unlocked: ok, ToolID: tool.ID}, nil
}

func (s *unlockServiceImpl) findTool(ctx context.Context, toolID string) (*model.ContentItem, error) {
	toolID = strings.TrimSpace(toolID)
	if toolID == "" {
		return nil, apperr.Validation("toolId is required")
	}

	tool, err := s.contentRepo.FindByID(ctx, toolID)
	if err != nil {
		return nil, notFound(err, "tool")
	}
	if tool.Kind != model.ContentTool || !tool.IsPublished() {
		return nil, apperr.NotFound("tool")
	}
	return tool, nil
}
