package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/resvia/resvia/middleware"
	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/monitoring"
	"github.com/resvia/resvia/security"
	"github.com/resvia/resvia/services"
)

type stubKeyStore struct {
	key *models.APIKey
}

func (s *stubKeyStore) GetByToken(_ context.Context, token string) (*models.APIKey, error) {
	if s.key != nil && s.key.Token == token {
		return s.key, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubKeyStore) TouchLastUsed(context.Context, string, time.Time) error {
	return nil
}

type noopRequestLogStore struct{}

func (noopRequestLogStore) Create(context.Context, *models.APIRequestLog) error {
	return nil
}

func (noopRequestLogStore) List(context.Context, models.APIRequestLogFilter) ([]*models.APIRequestLog, int64, error) {
	return nil, 0, nil
}

func (noopRequestLogStore) Stats(context.Context, time.Time) (*models.APIRequestStats, error) {
	return &models.APIRequestStats{}, nil
}

type noopDeliveryLogStore struct{}

func (noopDeliveryLogStore) ListByWebhook(context.Context, string, int, int) ([]*models.WebhookDeliveryLog, int64, error) {
	return nil, 0, nil
}

func (noopDeliveryLogStore) Stats(context.Context, time.Time) (*models.DeliveryStats, error) {
	return &models.DeliveryStats{}, nil
}

type memoryWebhookStore struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*models.WebhookSubscription
}

func newMemoryWebhookStore(subs ...*models.WebhookSubscription) *memoryWebhookStore {
	s := &memoryWebhookStore{byID: make(map[string]*models.WebhookSubscription)}
	for _, sub := range subs {
		s.byID[sub.ID] = sub
	}
	return s
}

func (s *memoryWebhookStore) Create(_ context.Context, sub *models.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sub.ID = fmt.Sprintf("wh_api_%d", s.seq)
	s.byID[sub.ID] = sub
	return nil
}

func (s *memoryWebhookStore) GetByID(_ context.Context, id string) (*models.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (s *memoryWebhookStore) Update(_ context.Context, sub *models.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sub.ID] = sub
	return nil
}

func (s *memoryWebhookStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memoryWebhookStore) ListByEstablishment(_ context.Context, slug string) ([]*models.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WebhookSubscription
	for _, sub := range s.byID {
		if sub.EstablishmentSlug == slug {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *memoryWebhookStore) Activate(_ context.Context, id string) error {
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

func partnerKey(scope string) *models.APIKey {
	key := &models.APIKey{
		ID:       "key_api",
		Token:    "sk_live_apitest",
		IsActive: true,
		Permissions: models.PermissionMap{
			"webhooks": {"read", "write"},
		},
	}
	if scope != "" {
		key.EstablishmentSlug = &scope
	}
	return key
}

func storedSubscription(id, slug string) *models.WebhookSubscription {
	return &models.WebhookSubscription{
		ID:                id,
		EstablishmentSlug: slug,
		Name:              "pms feed",
		URL:               "https://example.com/hooks",
		Secret:            "whsec_storedsubscription0123456789ab",
		Events:            models.StringList{"booking.confirmed"},
		Format:            models.WebhookFormatJSON,
		RetryCount:        3,
		RetryDelay:        5,
		IsActive:          true,
	}
}

// newWebhookAPI wires the full versioned-API chain around the webhook
// handler the way the server does, so authorization is exercised end to end.
func newWebhookAPI(t *testing.T, key *models.APIKey, store *memoryWebhookStore) *mux.Router {
	t.Helper()

	authenticator := services.CreateAuthenticator(&stubKeyStore{key: key}, zerolog.Nop())
	t.Cleanup(authenticator.Close)

	limiter := security.NewFixedWindowLimiter(100, time.Minute)
	t.Cleanup(func() { limiter.Close() })

	audit := services.CreateAuditService(noopRequestLogStore{}, noopDeliveryLogStore{}, zerolog.Nop())
	am := middleware.CreateAuthMiddleware(authenticator, limiter, audit, monitoring.NewMetrics(prometheus.NewRegistry()))

	handler := CreateWebhookHandler(services.CreateWebhookService(store, zerolog.Nop()), audit)

	router := mux.NewRouter()
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(am.Audit)
	v1.Use(am.Authenticate)
	v1.Use(am.RateLimit)

	read := am.RequirePermission("webhooks", "read")
	write := am.RequirePermission("webhooks", "write")
	v1.Handle("/webhooks", write(http.HandlerFunc(handler.HandleCreate))).Methods("POST")
	v1.Handle("/webhooks", read(http.HandlerFunc(handler.HandleList))).Methods("GET")
	v1.Handle("/webhooks/{id}", read(http.HandlerFunc(handler.HandleGet))).Methods("GET")
	v1.Handle("/webhooks/{id}", write(http.HandlerFunc(handler.HandleUpdate))).Methods("PUT")
	v1.Handle("/webhooks/{id}", write(http.HandlerFunc(handler.HandleDelete))).Methods("DELETE")
	v1.Handle("/webhooks/{id}/activate", write(http.HandlerFunc(handler.HandleActivate))).Methods("POST")
	v1.Handle("/webhooks/{id}/deliveries", read(http.HandlerFunc(handler.HandleDeliveries))).Methods("GET")
	return router
}

func doAPI(router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", "sk_live_apitest")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookAPI_ListScopedToEstablishment(t *testing.T) {
	store := newMemoryWebhookStore(
		storedSubscription("wh_own", "alpine-lodge"),
		storedSubscription("wh_other", "river-hotel"),
	)
	router := newWebhookAPI(t, partnerKey("alpine-lodge"), store)

	// The establishment comes from a query parameter here, so the scope
	// boundary has to hold against it too.
	w := doAPI(router, "GET", "/v1/webhooks?establishment=river-hotel", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign list status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = doAPI(router, "GET", "/v1/webhooks?establishment=alpine-lodge", nil)
	if w.Code != http.StatusOK {
		t.Errorf("own list status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestWebhookAPI_CreateOutsideScopeRejected(t *testing.T) {
	store := newMemoryWebhookStore()
	router := newWebhookAPI(t, partnerKey("alpine-lodge"), store)

	foreign := &models.CreateWebhookRequest{
		EstablishmentSlug: "river-hotel",
		Name:              "pms feed",
		URL:               "https://example.com/hooks",
		Events:            models.StringList{"booking.confirmed"},
	}
	w := doAPI(router, "POST", "/v1/webhooks", foreign)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign create status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if subs, _ := store.ListByEstablishment(context.Background(), "river-hotel"); len(subs) != 0 {
		t.Errorf("foreign subscription was stored: %d entries", len(subs))
	}

	own := &models.CreateWebhookRequest{
		EstablishmentSlug: "alpine-lodge",
		Name:              "pms feed",
		URL:               "https://example.com/hooks",
		Events:            models.StringList{"booking.confirmed"},
	}
	w = doAPI(router, "POST", "/v1/webhooks", own)
	if w.Code != http.StatusCreated {
		t.Errorf("own create status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestWebhookAPI_ForeignSubscriptionUnreachable(t *testing.T) {
	sub := storedSubscription("wh_other", "river-hotel")
	sub.IsActive = false
	store := newMemoryWebhookStore(sub)
	router := newWebhookAPI(t, partnerKey("alpine-lodge"), store)

	calls := []struct {
		method string
		path   string
		body   interface{}
	}{
		{"GET", "/v1/webhooks/wh_other", nil},
		{"PUT", "/v1/webhooks/wh_other", &models.UpdateWebhookRequest{}},
		{"DELETE", "/v1/webhooks/wh_other", nil},
		{"POST", "/v1/webhooks/wh_other/activate", nil},
		{"GET", "/v1/webhooks/wh_other/deliveries", nil},
	}
	for _, call := range calls {
		w := doAPI(router, call.method, call.path, call.body)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s status = %d, want %d", call.method, call.path, w.Code, http.StatusForbidden)
		}
	}

	// The subscription survives untouched: still present, still disabled.
	stored, err := store.GetByID(context.Background(), "wh_other")
	if err != nil {
		t.Fatalf("subscription gone after denied calls: %v", err)
	}
	if stored.IsActive {
		t.Error("denied activate call re-enabled the subscription")
	}
}

func TestWebhookAPI_UnscopedKeySpansEstablishments(t *testing.T) {
	store := newMemoryWebhookStore(storedSubscription("wh_other", "river-hotel"))
	router := newWebhookAPI(t, partnerKey(""), store)

	w := doAPI(router, "GET", "/v1/webhooks?establishment=river-hotel", nil)
	if w.Code != http.StatusOK {
		t.Errorf("unscoped list status = %d, want %d", w.Code, http.StatusOK)
	}
	w = doAPI(router, "GET", "/v1/webhooks/wh_other", nil)
	if w.Code != http.StatusOK {
		t.Errorf("unscoped get status = %d, want %d", w.Code, http.StatusOK)
	}
}
