package services

import (
	"context"
	"errors"
	"net/url"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/security"
	"github.com/resvia/resvia/utils"
)

var knownEvents = map[string]bool{
	EventBookingConfirmed: true,
	EventBookingCheckedIn: true,
	EventBookingCancelled: true,
	"*":                   true,
}

type webhookAdminStore interface {
	Create(ctx context.Context, sub *models.WebhookSubscription) error
	GetByID(ctx context.Context, id string) (*models.WebhookSubscription, error)
	Update(ctx context.Context, sub *models.WebhookSubscription) error
	Delete(ctx context.Context, id string) error
	ListByEstablishment(ctx context.Context, slug string) ([]*models.WebhookSubscription, error)
	Activate(ctx context.Context, id string) error
}

// WebhookService is the management surface for subscriptions. The signing
// secret appears in full exactly once, in the creation response; an
// auto-disabled subscription comes back only through an explicit Activate.
type WebhookService struct {
	store webhookAdminStore
	log   zerolog.Logger
}

func CreateWebhookService(store webhookAdminStore, log zerolog.Logger) *WebhookService {
	return &WebhookService{
		store: store,
		log:   log.With().Str("component", "webhooks").Logger(),
	}
}

func (s *WebhookService) CreateSubscription(ctx context.Context, req *models.CreateWebhookRequest) (*models.CreateWebhookResponse, error) {
	if req.EstablishmentSlug == "" || req.Name == "" {
		return nil, utils.ErrInvalidRequest
	}
	if err := validateTargetURL(req.URL); err != nil {
		return nil, err
	}
	if err := validateEvents(req.Events); err != nil {
		return nil, err
	}

	secret, err := security.GenerateWebhookSecret()
	if err != nil {
		return nil, utils.WrapError(err, "failed to generate webhook secret")
	}

	format := req.Format
	if format == "" {
		format = models.WebhookFormatJSON
	}
	if format != models.WebhookFormatJSON && format != models.WebhookFormatForm {
		return nil, utils.ErrInvalidRequest
	}

	sub := &models.WebhookSubscription{
		EstablishmentSlug: req.EstablishmentSlug,
		Name:              req.Name,
		URL:               req.URL,
		Events:            req.Events,
		Format:            format,
		Secret:            secret,
		RetryCount:        req.RetryCount,
		RetryDelay:        req.RetryDelay,
		IsActive:          true,
	}
	if sub.RetryCount <= 0 {
		sub.RetryCount = 3
	}
	if sub.RetryDelay <= 0 {
		sub.RetryDelay = 5
	}

	if err := s.store.Create(ctx, sub); err != nil {
		return nil, utils.WrapError(err, "failed to store webhook subscription")
	}

	s.log.Info().
		Str("webhook_id", sub.ID).
		Str("establishment", sub.EstablishmentSlug).
		Str("url", sub.URL).
		Msg("webhook subscription created")

	return &models.CreateWebhookResponse{Webhook: sub, Secret: secret}, nil
}

func (s *WebhookService) GetSubscription(ctx context.Context, id string) (*models.WebhookSubscription, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrWebhookNotFound
		}
		return nil, utils.WrapError(err, "failed to load webhook subscription")
	}
	return sub, nil
}

func (s *WebhookService) ListSubscriptions(ctx context.Context, establishmentSlug string) ([]*models.WebhookSubscription, error) {
	return s.store.ListByEstablishment(ctx, establishmentSlug)
}

func (s *WebhookService) UpdateSubscription(ctx context.Context, id string, req *models.UpdateWebhookRequest) (*models.WebhookSubscription, error) {
	sub, err := s.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		sub.Name = *req.Name
	}
	if req.URL != nil {
		if err := validateTargetURL(*req.URL); err != nil {
			return nil, err
		}
		sub.URL = *req.URL
	}
	if req.Events != nil {
		if err := validateEvents(req.Events); err != nil {
			return nil, err
		}
		sub.Events = req.Events
	}
	if req.Format != "" {
		if req.Format != models.WebhookFormatJSON && req.Format != models.WebhookFormatForm {
			return nil, utils.ErrInvalidRequest
		}
		sub.Format = req.Format
	}
	if req.RetryCount != nil && *req.RetryCount > 0 {
		sub.RetryCount = *req.RetryCount
	}
	if req.RetryDelay != nil && *req.RetryDelay > 0 {
		sub.RetryDelay = *req.RetryDelay
	}

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, utils.WrapError(err, "failed to update webhook subscription")
	}
	return sub, nil
}

// ActivateSubscription is the explicit admin action that reverses an
// auto-disable.
func (s *WebhookService) ActivateSubscription(ctx context.Context, id string) (*models.WebhookSubscription, error) {
	if _, err := s.GetSubscription(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.Activate(ctx, id); err != nil {
		return nil, utils.WrapError(err, "failed to activate webhook subscription")
	}

	s.log.Info().Str("webhook_id", id).Msg("webhook subscription reactivated")
	return s.GetSubscription(ctx, id)
}

func (s *WebhookService) DeleteSubscription(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrWebhookNotFound
		}
		return utils.WrapError(err, "failed to delete webhook subscription")
	}
	return nil
}

func validateTargetURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return utils.ErrInvalidRequest
	}
	return nil
}

func validateEvents(events models.StringList) error {
	if len(events) == 0 {
		return utils.ErrInvalidWebhookEvent
	}
	for _, event := range events {
		if !knownEvents[event] {
			return utils.ErrInvalidWebhookEvent
		}
	}
	return nil
}
