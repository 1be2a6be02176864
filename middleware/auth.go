package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/monitoring"
	"github.com/resvia/resvia/security"
	"github.com/resvia/resvia/services"
	"github.com/resvia/resvia/utils"
)

type contextKey string

const keyHolderContextKey contextKey = "api_key_holder"

// keyHolder lets the innermost Authenticate middleware hand the resolved
// key back out to the outermost Audit middleware, which opened the context
// before authentication ran.
type keyHolder struct {
	key *models.APIKey
}

// APIKeyFromContext returns the authenticated key, or nil on
// unauthenticated or rejected paths.
func APIKeyFromContext(ctx context.Context) *models.APIKey {
	if holder, ok := ctx.Value(keyHolderContextKey).(*keyHolder); ok {
		return holder.key
	}
	return nil
}

// AuthMiddleware chains audit recording, authentication, rate limiting and
// permission checks for the versioned API. Registration order on the
// subrouter is Audit, Authenticate, RateLimit, so every call is audited
// exactly once whatever stage rejects it.
type AuthMiddleware struct {
	authenticator *services.Authenticator
	limiter       security.RateLimiter
	audit         *services.AuditService
	metrics       *monitoring.Metrics
}

func CreateAuthMiddleware(
	authenticator *services.Authenticator,
	limiter security.RateLimiter,
	audit *services.AuditService,
	metrics *monitoring.Metrics,
) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		limiter:       limiter,
		audit:         audit,
		metrics:       metrics,
	}
}

// Audit appends one request log row per call and updates the Prometheus
// collectors. Recording is best-effort and never affects the response.
func (am *AuthMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &keyHolder{}
		ctx := context.WithValue(r.Context(), keyHolderContextKey, holder)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r.WithContext(ctx))

		elapsed := time.Since(start)
		am.metrics.APIRequests.WithLabelValues(r.Method, fmt.Sprintf("%dxx", recorder.status/100)).Inc()
		am.metrics.RequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())

		entry := &models.APIRequestLog{
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: recorder.status,
			DurationMs: elapsed.Milliseconds(),
			IPAddress:  clientIP(r),
			UserAgent:  r.UserAgent(),
		}
		if holder.key != nil {
			entry.APIKeyID = &holder.key.ID
		}
		am.audit.RecordAPIRequest(r.Context(), entry)
	})
}

// Authenticate validates X-API-Key and places the key record on the request
// context. Authentication failures are rejected before any business logic
// runs.
func (am *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := am.authenticator.Authenticate(r.Context(), r.Header.Get("X-API-Key"))
		if err != nil {
			am.writeError(w, err)
			return
		}

		if holder, ok := r.Context().Value(keyHolderContextKey).(*keyHolder); ok {
			holder.key = key
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit enforces the fixed-window limit keyed by credential, falling
// back to the caller IP. Every response carries the standard rate-limit
// headers; a denial adds Retry-After.
func (am *AuthMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiterKey := clientIP(r)
		if key := APIKeyFromContext(r.Context()); key != nil {
			limiterKey = key.ID
		}

		result, err := am.limiter.Check(r.Context(), limiterKey)
		if err != nil {
			// A broken limiter backend must not take the API down;
			// the request proceeds uncounted.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			am.metrics.RateLimitDenials.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
			am.writeError(w, utils.ErrRateLimitExceeded)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequirePermission authorizes the authenticated key for a resource/action
// pair. The establishment route variable, when present, is the scope the
// key is checked against; a scope mismatch is rejected distinctly from a
// missing permission.
func (am *AuthMiddleware) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := APIKeyFromContext(r.Context())
			if key == nil {
				am.writeError(w, utils.ErrMissingAPIKey)
				return
			}

			scopeSlug := mux.Vars(r)["establishment"]
			if !am.authenticator.HasPermission(key, resource, action, scopeSlug) {
				err := utils.ErrMissingPermission
				if key.EstablishmentSlug != nil && scopeSlug != "" && *key.EstablishmentSlug != scopeSlug {
					err = utils.ErrScopeMismatch
				}
				am.writeError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (am *AuthMiddleware) writeError(w http.ResponseWriter, err error) {
	apiErr := utils.AsAPIError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  apiErr.Message,
		"reason": apiErr.Reason,
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
