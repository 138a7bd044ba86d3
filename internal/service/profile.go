package service

import (
	"context"
	"errors"
	"fmt"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"
)

type ProfileService interface {
	EnsureProfile(ctx context.Context, userID, email string) (*model.Profile, error)
	Me(ctx context.Context, userID string) (*dto.MeResponse, error)
}

type profileServiceImpl struct {
	profileRepo    repository.ProfileRepository
	membershipRepo repository.MembershipRepository
}

func NewProfileService(profileRepo repository.ProfileRepository, membershipRepo repository.MembershipRepository) ProfileService {
	return &profileServiceImpl{
		profileRepo:    profileRepo,
		membershipRepo: membershipRepo,
	}
}

func (s *profileServiceImpl) EnsureProfile(ctx context.Context, userID, email string) (*model.Profile, error) {
	if userID == "" {
		return nil, apperr.AuthenticationRequired("sign in to continue")
	}
	profile, err := s.profileRepo.Ensure(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return profile, nil
}

func (s *profileServiceImpl) Me(ctx context.Context, userID string) (*dto.MeResponse, error) {
	profile, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		return nil, notFound(err, "profile")
	}

	resp := &dto.MeResponse{
		ID:    profile.ID,
		Email: profile.Email,
		Role:  string(profile.Role),
	}

	membership, err := s.membershipRepo.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		resp.Membership = &dto.MembershipResponse{
			Status:           string(membership.Status),
			Active:           membership.IsActive(),
			CurrentPeriodEnd: membership.CurrentPeriodEnd,
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find membership: %w", err)
	}

	return resp, nil
}
