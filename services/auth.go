package services

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/utils"
)

const (
	keyCacheTTL   = 30 * time.Second
	keyCacheSweep = time.Minute
	touchQueueCap = 256
)

type authKeyStore interface {
	GetByToken(ctx context.Context, token string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error
}

// Authenticator validates inbound API keys and resolves their scoped
// permissions. Key lookups sit on the hot path of every versioned API call,
// so a short-TTL cache fronts the store; last-used stamping goes through a
// bounded queue and never blocks or fails the caller's request.
type Authenticator struct {
	keys  authKeyStore
	cache *gocache.Cache
	log   zerolog.Logger

	touch chan touchRequest
	wg    sync.WaitGroup
	once  sync.Once
}

type touchRequest struct {
	keyID  string
	usedAt time.Time
}

func CreateAuthenticator(keys authKeyStore, log zerolog.Logger) *Authenticator {
	a := &Authenticator{
		keys:  keys,
		cache: gocache.New(keyCacheTTL, keyCacheSweep),
		log:   log.With().Str("component", "authenticator").Logger(),
		touch: make(chan touchRequest, touchQueueCap),
	}

	a.wg.Add(1)
	go a.touchWorker()

	return a
}

// Authenticate resolves a raw token to its key record. The error is always
// one of the authentication taxonomy values; the distinct reasons are logged
// but all map to an unauthorized status.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*models.APIKey, error) {
	if rawKey == "" {
		return nil, utils.ErrMissingAPIKey
	}

	key, err := a.lookup(ctx, rawKey)
	if err != nil {
		return nil, err
	}

	if !key.IsActive {
		return nil, utils.ErrInactiveAPIKey
	}
	if key.Expired(time.Now()) {
		return nil, utils.ErrExpiredAPIKey
	}

	a.recordUsed(key.ID)

	return key, nil
}

func (a *Authenticator) lookup(ctx context.Context, rawKey string) (*models.APIKey, error) {
	if cached, ok := a.cache.Get(rawKey); ok {
		return cached.(*models.APIKey), nil
	}

	key, err := a.keys.GetByToken(ctx, rawKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrInvalidAPIKey
		}
		a.log.Error().Err(err).Msg("api key lookup failed")
		return nil, utils.ErrInvalidAPIKey
	}

	a.cache.Set(rawKey, key, gocache.DefaultExpiration)
	return key, nil
}

// recordUsed enqueues a last-used stamp. The queue is bounded; when it is
// full the stamp is dropped rather than stalling the request.
func (a *Authenticator) recordUsed(keyID string) {
	select {
	case a.touch <- touchRequest{keyID: keyID, usedAt: time.Now()}:
	default:
		a.log.Debug().Str("key_id", keyID).Msg("last-used queue full, stamp dropped")
	}
}

func (a *Authenticator) touchWorker() {
	defer a.wg.Done()

	for req := range a.touch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.keys.TouchLastUsed(ctx, req.keyID, req.usedAt); err != nil {
			a.log.Warn().Err(err).Str("key_id", req.keyID).Msg("last-used stamp failed")
		}
		cancel()
	}
}

// HasPermission checks whether the key may perform action on resource for
// the given establishment. An establishment-scoped key targeting a
// different establishment is denied before the permission map is consulted.
func (a *Authenticator) HasPermission(key *models.APIKey, resource, action, scopeSlug string) bool {
	if key.EstablishmentSlug != nil && scopeSlug != "" && *key.EstablishmentSlug != scopeSlug {
		return false
	}

	if actionsAllow(key.Permissions[resource], action) {
		return true
	}
	return actionsAllow(key.Permissions["*"], action)
}

func actionsAllow(actions []string, action string) bool {
	for _, a := range actions {
		if a == action || a == "*" {
			return true
		}
	}
	return false
}

// Invalidate drops a token from the cache after an admin mutation so
// deactivation takes effect immediately.
func (a *Authenticator) Invalidate(rawKey string) {
	a.cache.Delete(rawKey)
}

// Close drains the last-used queue.
func (a *Authenticator) Close() {
	a.once.Do(func() {
		close(a.touch)
	})
	a.wg.Wait()
}
