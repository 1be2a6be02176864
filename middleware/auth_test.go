package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

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

type memoryAuditStore struct {
	mu      sync.Mutex
	entries []*models.APIRequestLog
}

func (s *memoryAuditStore) Create(_ context.Context, entry *models.APIRequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryAuditStore) List(context.Context, models.APIRequestLogFilter) ([]*models.APIRequestLog, int64, error) {
	return nil, 0, nil
}

func (s *memoryAuditStore) Stats(context.Context, time.Time) (*models.APIRequestStats, error) {
	return &models.APIRequestStats{}, nil
}

type noopDeliveryStore struct{}

func (noopDeliveryStore) ListByWebhook(context.Context, string, int, int) ([]*models.WebhookDeliveryLog, int64, error) {
	return nil, 0, nil
}

func (noopDeliveryStore) Stats(context.Context, time.Time) (*models.DeliveryStats, error) {
	return &models.DeliveryStats{}, nil
}

func testKey(scope string) *models.APIKey {
	key := &models.APIKey{
		ID:       "key_mw",
		Token:    "sk_live_middleware",
		IsActive: true,
		Permissions: models.PermissionMap{
			"bookings": {"read"},
		},
	}
	if scope != "" {
		key.EstablishmentSlug = &scope
	}
	return key
}

type testStack struct {
	router *mux.Router
	audit  *memoryAuditStore
}

func newTestStack(t *testing.T, key *models.APIKey, limit int) *testStack {
	t.Helper()

	auditStore := &memoryAuditStore{}
	authenticator := services.CreateAuthenticator(&stubKeyStore{key: key}, zerolog.Nop())
	t.Cleanup(authenticator.Close)

	limiter := security.NewFixedWindowLimiter(limit, time.Minute)
	t.Cleanup(func() { limiter.Close() })

	auditService := services.CreateAuditService(auditStore, noopDeliveryStore{}, zerolog.Nop())
	am := CreateAuthMiddleware(authenticator, limiter, auditService, monitoring.NewMetrics(prometheus.NewRegistry()))

	router := mux.NewRouter()
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(am.Audit)
	v1.Use(am.Authenticate)
	v1.Use(am.RateLimit)

	read := am.RequirePermission("bookings", "read")
	v1.Handle("/establishments/{establishment}/bookings",
		read(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))).Methods("GET")

	return &testStack{router: router, audit: auditStore}
}

func (s *testStack) get(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/v1/establishments/alpine-lodge/bookings", nil)
	if token != "" {
		req.Header.Set("X-API-Key", token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingKey(t *testing.T) {
	stack := newTestStack(t, testKey("alpine-lodge"), 100)

	w := stack.get("")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidKey(t *testing.T) {
	stack := newTestStack(t, testKey("alpine-lodge"), 100)

	w := stack.get("sk_live_wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_AuthorizedRequest(t *testing.T) {
	stack := newTestStack(t, testKey("alpine-lodge"), 100)

	w := stack.get("sk_live_middleware")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if got := w.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want %q", got, "100")
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "99" {
		t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "99")
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset header missing")
	}
}

func TestAuthMiddleware_ScopeMismatch(t *testing.T) {
	stack := newTestStack(t, testKey("river-hotel"), 100)

	w := stack.get("sk_live_middleware")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestAuthMiddleware_RateLimitDenial(t *testing.T) {
	stack := newTestStack(t, testKey("alpine-lodge"), 2)

	stack.get("sk_live_middleware")
	stack.get("sk_live_middleware")

	w := stack.get("sk_live_middleware")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on denial")
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "0")
	}
}

func TestAuthMiddleware_AuditsEveryOutcome(t *testing.T) {
	stack := newTestStack(t, testKey("alpine-lodge"), 100)

	stack.get("sk_live_middleware")
	stack.get("")
	stack.get("sk_live_wrong")

	stack.audit.mu.Lock()
	defer stack.audit.mu.Unlock()
	if len(stack.audit.entries) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(stack.audit.entries))
	}

	// The authenticated call carries its key; rejected calls do not.
	if stack.audit.entries[0].APIKeyID == nil || *stack.audit.entries[0].APIKeyID != "key_mw" {
		t.Error("authenticated request should record its key id")
	}
	if stack.audit.entries[1].APIKeyID != nil {
		t.Error("unauthenticated request should not record a key id")
	}
	if stack.audit.entries[0].StatusCode != http.StatusOK {
		t.Errorf("entry status = %d, want %d", stack.audit.entries[0].StatusCode, http.StatusOK)
	}
	if stack.audit.entries[1].StatusCode != http.StatusUnauthorized {
		t.Errorf("entry status = %d, want %d", stack.audit.entries[1].StatusCode, http.StatusUnauthorized)
	}
}
