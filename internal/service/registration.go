package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/client"
	"creator-playbook/internal/config"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxNameLength    = 100
	maxCountryLength = 64
)

type RegistrationService interface {
	Register(ctx context.Context, itemID string, req *dto.RegisterRequest, ip string) (*dto.RegisterResponse, error)
	List(ctx context.Context, itemID string, limit int) ([]*dto.RegistrationResponse, error)
	Count(ctx context.Context, itemID string) (int64, error)
}

type registrationServiceImpl struct {
	registrationRepo repository.RegistrationRepository
	contentRepo      repository.ContentRepository
	mailClient       client.MailClient
	mailCfg          *config.Mail
}

func NewRegistrationService(
	registrationRepo repository.RegistrationRepository,
	contentRepo repository.ContentRepository,
	mailClient client.MailClient,
	mailCfg *config.Mail,
) RegistrationService {
	return &registrationServiceImpl{
		registrationRepo: registrationRepo,
		contentRepo:      contentRepo,
		mailClient:       mailClient,
		mailCfg:          mailCfg,
	}
}

// Register stores the registration first; mail delivery afterwards is best
// effort and only reported back.
func (s *registrationServiceImpl) Register(ctx context.Context, itemID string, req *dto.RegisterRequest, ip string) (*dto.RegisterResponse, error) {
	if strings.TrimSpace(req.Website) != "" {
		logger.Get().Info("registration honeypot tripped", zap.String("ip", ip), zap.String("item_id", itemID))
		return nil, apperr.Validation("invalid submission")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, apperr.Validation("name is required and must be at most %d characters", maxNameLength)
	}
	country := strings.TrimSpace(req.Country)
	if country == "" || utf8.RuneCountInString(country) > maxCountryLength {
		return nil, apperr.Validation("country is required and must be at most %d characters", maxCountryLength)
	}
	email, err := validateEmail(req.Email)
	if err != nil {
		return nil, err
	}

	item, err := s.contentRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, notFound(err, "event")
	}
	if item.Kind != model.ContentVolume || !item.IsPublished() {
		return nil, apperr.NotFound("event")
	}

	registration := &model.EventRegistration{
		ID:      uuid.NewString(),
		ItemID:  item.ID,
		Name:    name,
		Country: country,
		Email:   email,
		IP:      ip,
	}
	if err := s.registrationRepo.Create(ctx, registration); err != nil {
		return nil, fmt.Errorf("store registration: %w", err)
	}

	resp := &dto.RegisterResponse{
		ID:           registration.ID,
		Notification: s.notifyAdmin(ctx, item, registration),
		Confirmation: s.confirm(ctx, item, registration),
		Audience:     s.deliver(ctx, "audience", s.mailClient.AddContact(ctx, email, name)),
	}

	logger.Get().Info("event registration",
		zap.String("registration_id", registration.ID),
		zap.String("item_id", item.ID),
		zap.String("notification", resp.Notification),
		zap.String("confirmation", resp.Confirmation),
		zap.String("audience", resp.Audience),
	)
	return resp, nil
}

func (s *registrationServiceImpl) notifyAdmin(ctx context.Context, item *model.ContentItem, r *model.EventRegistration) string {
	if s.mailCfg.NotifyTo == "" {
		return dto.DeliverySkipped
	}
	err := s.mailClient.Send(ctx, &client.Email{
		To:      []string{s.mailCfg.NotifyTo},
		Subject: fmt.Sprintf("New registration: %s", item.Title),
		Text:    fmt.Sprintf("%s (%s) from %s registered for %s.", r.Name, r.Email, r.Country, item.Title),
		ReplyTo: r.Email,
	})
	return s.deliver(ctx, "notification", err)
}

func (s *registrationServiceImpl) confirm(ctx context.Context, item *model.ContentItem, r *model.EventRegistration) string {
	err := s.mailClient.Send(ctx, &client.Email{
		To:      []string{r.Email},
		Subject: fmt.Sprintf("You're registered for %s", item.Title),
		Text:    fmt.Sprintf("Hi %s,\n\nYou're on the list for %s. We'll send the details before it starts.\n", r.Name, item.Title),
	})
	return s.deliver(ctx, "confirmation", err)
}

func (s *registrationServiceImpl) deliver(ctx context.Context, what string, err error) string {
	switch {
	case err == nil:
		return dto.DeliverySent
	case errors.Is(err, client.ErrMailDisabled):
		return dto.DeliverySkipped
	}

	fields := []zap.Field{zap.String("side_effect", what), zap.Error(err)}
	if appErr, ok := apperr.As(err); ok {
		fields = append(fields,
			zap.String("provider", appErr.Provider),
			zap.String("provider_code", appErr.Code),
			zap.String("request_id", appErr.RequestID),
		)
	}
	logger.Get().Warn("best effort delivery failed", fields...)
	return dto.DeliveryFailed
}

func (s *registrationServiceImpl) List(ctx context.Context, itemID string, limit int) ([]*dto.RegistrationResponse, error) {
	registrations, err := s.registrationRepo.List(ctx, itemID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	out := make([]*dto.RegistrationResponse, len(registrations))
	for i, r := range registrations {
		out[i] = &dto.RegistrationResponse{
			ID:        r.ID,
			ItemID:    r.ItemID,
			Name:      r.Name,
			Country:   r.Country,
			Email:     r.Email,
			CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

func (s *registrationServiceImpl) Count(ctx context.Context, itemID string) (int64, error) {
	n, err := s.registrationRepo.CountByItem(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}
