package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/security"
	"github.com/resvia/resvia/utils"
)

type apiKeyAdminStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, id string) (*models.APIKey, error)
	Update(ctx context.Context, key *models.APIKey) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.APIKey, error)
}

// APIKeyService is the super-admin management surface for consumer keys.
// The token appears in full exactly once, in the creation response.
type APIKeyService struct {
	store         apiKeyAdminStore
	authenticator *Authenticator
	log           zerolog.Logger
}

func CreateAPIKeyService(store apiKeyAdminStore, authenticator *Authenticator, log zerolog.Logger) *APIKeyService {
	return &APIKeyService{
		store:         store,
		authenticator: authenticator,
		log:           log.With().Str("component", "apikeys").Logger(),
	}
}

func (s *APIKeyService) CreateKey(ctx context.Context, req *models.CreateAPIKeyRequest) (*models.CreateAPIKeyResponse, error) {
	if req.Name == "" {
		return nil, utils.ErrInvalidRequest
	}
	if err := req.Permissions.Validate(); err != nil {
		return nil, utils.ErrInvalidPermissions
	}

	token, err := security.GenerateAPIKey()
	if err != nil {
		return nil, utils.WrapError(err, "failed to generate api key")
	}

	key := &models.APIKey{
		Name:              req.Name,
		Token:             token,
		TokenPrefix:       security.TokenPrefix(token),
		EstablishmentSlug: req.EstablishmentSlug,
		Permissions:       req.Permissions,
		IsActive:          true,
		ExpiresAt:         req.ExpiresAt,
	}
	if err := s.store.Create(ctx, key); err != nil {
		return nil, utils.WrapError(err, "failed to store api key")
	}

	s.log.Info().Str("key_id", key.ID).Str("name", key.Name).Msg("api key created")

	return &models.CreateAPIKeyResponse{Key: key, Token: token}, nil
}

func (s *APIKeyService) GetKey(ctx context.Context, id string) (*models.APIKey, error) {
	key, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrKeyNotFound
		}
		return nil, utils.WrapError(err, "failed to load api key")
	}
	return key, nil
}

func (s *APIKeyService) ListKeys(ctx context.Context, limit, offset int) ([]*models.APIKey, error) {
	return s.store.List(ctx, limit, offset)
}

func (s *APIKeyService) UpdateKey(ctx context.Context, id string, req *models.UpdateAPIKeyRequest) (*models.APIKey, error) {
	key, err := s.GetKey(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.Permissions != nil {
		if err := req.Permissions.Validate(); err != nil {
			return nil, utils.ErrInvalidPermissions
		}
		key.Permissions = req.Permissions
	}
	if req.IsActive != nil {
		key.IsActive = *req.IsActive
	}
	if req.ExpiresAt != nil {
		key.ExpiresAt = req.ExpiresAt
	}

	if err := s.store.Update(ctx, key); err != nil {
		return nil, utils.WrapError(err, "failed to update api key")
	}
	s.authenticator.Invalidate(key.Token)

	return key, nil
}

func (s *APIKeyService) DeleteKey(ctx context.Context, id string) error {
	key, err := s.GetKey(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return utils.WrapError(err, "failed to delete api key")
	}
	s.authenticator.Invalidate(key.Token)

	s.log.Info().Str("key_id", id).Msg("api key deleted")
	return nil
}
