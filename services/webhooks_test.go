package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/utils"
)

type fakeWebhookAdminStore struct {
	mu   sync.Mutex
	byID map[string]*models.WebhookSubscription
	seq  int
}

func newFakeWebhookAdminStore() *fakeWebhookAdminStore {
	return &fakeWebhookAdminStore{byID: make(map[string]*models.WebhookSubscription)}
}

func (s *fakeWebhookAdminStore) Create(_ context.Context, sub *models.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if sub.ID == "" {
		sub.ID = fmt.Sprintf("wh_fake_%d", s.seq)
	}
	s.byID[sub.ID] = sub
	return nil
}

func (s *fakeWebhookAdminStore) GetByID(_ context.Context, id string) (*models.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (s *fakeWebhookAdminStore) Update(_ context.Context, sub *models.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sub.ID] = sub
	return nil
}

func (s *fakeWebhookAdminStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *fakeWebhookAdminStore) ListByEstablishment(_ context.Context, slug string) ([]*models.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WebhookSubscription
	for _, sub := range s.byID {
		if slug == "" || sub.EstablishmentSlug == slug {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeWebhookAdminStore) Activate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sub.IsActive = true
	sub.DisabledAt = nil
	sub.DisableReason = ""
	return nil
}

func createRequest() *models.CreateWebhookRequest {
	return &models.CreateWebhookRequest{
		EstablishmentSlug: "alpine-lodge",
		Name:              "partner pms",
		URL:               "https://example.com/hooks",
		Events:            models.StringList{EventBookingConfirmed},
	}
}

func TestWebhookService_CreateSubscription(t *testing.T) {
	svc := CreateWebhookService(newFakeWebhookAdminStore(), zerolog.Nop())

	resp, err := svc.CreateSubscription(context.Background(), createRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Secret, "whsec_"))
	assert.Equal(t, resp.Secret, resp.Webhook.Secret)
	assert.True(t, resp.Webhook.IsActive)
	assert.Equal(t, 3, resp.Webhook.RetryCount)
	assert.Equal(t, 5, resp.Webhook.RetryDelay)
	assert.Equal(t, models.WebhookFormatJSON, resp.Webhook.Format)
}

func TestWebhookService_CreateSubscription_Validation(t *testing.T) {
	svc := CreateWebhookService(newFakeWebhookAdminStore(), zerolog.Nop())
	ctx := context.Background()

	t.Run("rejects unknown event", func(t *testing.T) {
		req := createRequest()
		req.Events = models.StringList{"booking.teleported"}
		_, err := svc.CreateSubscription(ctx, req)
		assert.ErrorIs(t, err, utils.ErrInvalidWebhookEvent)
	})

	t.Run("rejects empty events", func(t *testing.T) {
		req := createRequest()
		req.Events = nil
		_, err := svc.CreateSubscription(ctx, req)
		assert.ErrorIs(t, err, utils.ErrInvalidWebhookEvent)
	})

	t.Run("rejects bad url", func(t *testing.T) {
		req := createRequest()
		req.URL = "not a url"
		_, err := svc.CreateSubscription(ctx, req)
		assert.ErrorIs(t, err, utils.ErrInvalidRequest)
	})

	t.Run("rejects non-http scheme", func(t *testing.T) {
		req := createRequest()
		req.URL = "ftp://example.com/hooks"
		_, err := svc.CreateSubscription(ctx, req)
		assert.ErrorIs(t, err, utils.ErrInvalidRequest)
	})

	t.Run("accepts wildcard event", func(t *testing.T) {
		req := createRequest()
		req.Events = models.StringList{"*"}
		_, err := svc.CreateSubscription(ctx, req)
		assert.NoError(t, err)
	})
}

func TestWebhookService_ActivateReversesDisable(t *testing.T) {
	store := newFakeWebhookAdminStore()
	svc := CreateWebhookService(store, zerolog.Nop())
	ctx := context.Background()

	resp, err := svc.CreateSubscription(ctx, createRequest())
	require.NoError(t, err)

	sub := resp.Webhook
	sub.IsActive = false
	sub.DisableReason = "auto-disabled after 10 consecutive failed deliveries"
	require.NoError(t, store.Update(ctx, sub))

	got, err := svc.ActivateSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.DisableReason)
	assert.Nil(t, got.DisabledAt)
}

func TestWebhookService_NotFound(t *testing.T) {
	svc := CreateWebhookService(newFakeWebhookAdminStore(), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.GetSubscription(ctx, "wh_missing")
	assert.ErrorIs(t, err, utils.ErrWebhookNotFound)

	_, err = svc.ActivateSubscription(ctx, "wh_missing")
	assert.ErrorIs(t, err, utils.ErrWebhookNotFound)

	err = svc.DeleteSubscription(ctx, "wh_missing")
	assert.ErrorIs(t, err, utils.ErrWebhookNotFound)
}
