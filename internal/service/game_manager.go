package service

import (
	"context"
	"sync"

	"github.com/GoPolymarket/housevault/internal/config"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultGameQPS   = 50
	defaultGameBurst = 100
)

// GameSession ties a bearer token to the capability the treasury issued for
// one game. The capability never leaves the process; callers only see the
// token.
type GameSession struct {
	Token      string
	GameKey    string
	Capability *treasury.Capability
}

type SessionStore interface {
	SaveSession(ctx context.Context, token, gameKey string) error
	DeleteSession(ctx context.Context, token string) error
	Sessions(ctx context.Context) (map[string]string, error)
}

// GameManager keeps capability sessions and per-game rate limiters.
type GameManager struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession  // Key: token
	byGame   map[string]string        // Key: game key, value: token
	limiters map[string]*rate.Limiter // Key: game key
	rates    map[string]config.RateLimitConfig
	store    SessionStore
}

func NewGameManager(store SessionStore) *GameManager {
	return &GameManager{
		sessions: make(map[string]*GameSession),
		byGame:   make(map[string]string),
		limiters: make(map[string]*rate.Limiter),
		rates:    make(map[string]config.RateLimitConfig),
		store:    store,
	}
}

// Bind issues a token for cap. A game has at most one session.
func (m *GameManager) Bind(ctx context.Context, cap *treasury.Capability) (string, error) {
	return m.bind(ctx, uuid.NewString(), cap)
}

func (m *GameManager) bind(ctx context.Context, token string, cap *treasury.Capability) (string, error) {
	gameKey := cap.GameKey()
	if m.store != nil {
		if err := m.store.SaveSession(ctx, token, gameKey); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byGame[gameKey]; ok {
		delete(m.sessions, old)
	}
	m.sessions[token] = &GameSession{Token: token, GameKey: gameKey, Capability: cap}
	m.byGame[gameKey] = token
	m.ensureLimiterLocked(gameKey)
	return token, nil
}

func (m *GameManager) Resolve(token string) (*GameSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}

// Revoke drops the session of gameKey. Its limiter is kept in case the key
// is registered again.
func (m *GameManager) Revoke(ctx context.Context, gameKey string) {
	m.mu.Lock()
	token, ok := m.byGame[gameKey]
	if ok {
		delete(m.byGame, gameKey)
		delete(m.sessions, token)
	}
	m.mu.Unlock()

	if ok && m.store != nil {
		if err := m.store.DeleteSession(ctx, token); err != nil {
			logger.Warn("failed to delete game session", "game", gameKey, "error", err)
		}
	}
}

// Rebind reattaches capabilities issued by a treasury restore. Saved tokens
// keep working; games without one get a fresh token, which is logged so the
// operator can hand it over.
func (m *GameManager) Rebind(ctx context.Context, caps map[string]*treasury.Capability) (int, error) {
	saved := map[string]string{}
	if m.store != nil {
		all, err := m.store.Sessions(ctx)
		if err != nil {
			return 0, err
		}
		for token, gameKey := range all {
			saved[gameKey] = token
		}
	}

	bound := 0
	for gameKey, cap := range caps {
		token, ok := saved[gameKey]
		if !ok {
			var err error
			token, err = m.Bind(ctx, cap)
			if err != nil {
				return bound, err
			}
			logger.Warn("issued new token for restored game", "game", gameKey)
			bound++
			continue
		}
		if _, err := m.bind(ctx, token, cap); err != nil {
			return bound, err
		}
		bound++
	}

	// Sessions of games that are no longer claimed are stale.
	if m.store != nil {
		for gameKey, token := range saved {
			if _, ok := caps[gameKey]; !ok {
				_ = m.store.DeleteSession(ctx, token)
			}
		}
	}
	return bound, nil
}

// SetRate overrides the rate limit of one game.
func (m *GameManager) SetRate(gameKey string, rl config.RateLimitConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[gameKey] = rl
	delete(m.limiters, gameKey)
	m.ensureLimiterLocked(gameKey)
}

func (m *GameManager) LimiterFor(gameKey string) *rate.Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiters[gameKey]
}

func (m *GameManager) ensureLimiterLocked(gameKey string) {
	if _, ok := m.limiters[gameKey]; ok {
		return
	}
	rl, ok := m.rates[gameKey]
	if !ok {
		rl = config.RateLimitConfig{QPS: defaultGameQPS, Burst: defaultGameBurst}
	}
	limit := rate.Limit(rl.QPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := rl.Burst
	if burst == 0 {
		burst = 1
	}
	m.limiters[gameKey] = rate.NewLimiter(limit, burst)
}
