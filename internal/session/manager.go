// Package session manages chat sessions: creation, expiry, and a small
// in-process cache of recent conversation history so the chat endpoint
// does not hit the database on every exchange.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taxintel/taxintel/internal/storage"
	"github.com/taxintel/taxintel/internal/types"
)

// maxCachedHistory caps the per-session cached exchange count
const maxCachedHistory = 50

// Config holds session manager settings
type Config struct {
	// TTL is how long a session stays alive after its last activity
	TTL time.Duration
	// DefaultLanguage is assigned when a new session does not specify one
	DefaultLanguage string
}

// Manager coordinates session persistence with an in-memory history cache
type Manager struct {
	store storage.Storage
	cfg   Config

	mu    sync.Mutex
	cache map[string][]*types.Conversation

	// now is swappable for tests
	now func() time.Time
}

// NewManager creates a session manager backed by store
func NewManager(store storage.Storage, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		cache: make(map[string][]*types.Conversation),
		now:   time.Now,
	}
}

// GetOrCreate returns the session with the given ID, refreshing its expiry.
// An empty, unknown, or expired ID yields a fresh session.
func (m *Manager) GetOrCreate(ctx context.Context, id, language string) (*types.Session, error) {
	now := m.now().UTC()

	if id != "" {
		sess, err := m.store.GetSession(ctx, id)
		switch {
		case err == nil:
			if sess.IsActive && !sess.Expired(now) {
				expiresAt := now.Add(m.cfg.TTL)
				if err := m.store.TouchSession(ctx, id, now, expiresAt); err != nil {
					return nil, fmt.Errorf("failed to refresh session: %w", err)
				}
				sess.LastActivity = now
				sess.ExpiresAt = expiresAt
				return sess, nil
			}
			// Expired or deactivated sessions fall through to a new one.
		case errors.Is(err, storage.ErrNotFound):
			// Unknown ID, issue a new session.
		default:
			return nil, fmt.Errorf("failed to look up session: %w", err)
		}
	}

	if language == "" {
		language = m.cfg.DefaultLanguage
	}
	sess := &types.Session{
		ID:           uuid.New().String(),
		Language:     language,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.cfg.TTL),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// AddExchange records one user/assistant exchange for the session, updating
// both the database and the in-memory cache.
func (m *Manager) AddExchange(ctx context.Context, conv *types.Conversation) error {
	if conv.Timestamp.IsZero() {
		conv.Timestamp = m.now().UTC()
	}
	if err := m.store.AddConversation(ctx, conv); err != nil {
		return fmt.Errorf("failed to store exchange: %w", err)
	}
	if err := m.store.IncrementConversationCount(ctx, conv.SessionID); err != nil {
		return fmt.Errorf("failed to update session counter: %w", err)
	}

	m.mu.Lock()
	history := append(m.cache[conv.SessionID], conv)
	if len(history) > maxCachedHistory {
		history = history[len(history)-maxCachedHistory:]
	}
	m.cache[conv.SessionID] = history
	m.mu.Unlock()
	return nil
}

// History returns the session's recent exchanges in chronological order,
// served from cache when warm.
func (m *Manager) History(ctx context.Context, sessionID string, limit int) ([]*types.Conversation, error) {
	if limit <= 0 || limit > maxCachedHistory {
		limit = maxCachedHistory
	}

	m.mu.Lock()
	cached := m.cache[sessionID]
	m.mu.Unlock()
	if len(cached) > 0 {
		if len(cached) > limit {
			cached = cached[len(cached)-limit:]
		}
		out := make([]*types.Conversation, len(cached))
		copy(out, cached)
		return out, nil
	}

	history, err := m.store.SessionHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	return history, nil
}

// CleanupExpired deactivates expired sessions and drops their cached
// history, returning the number deactivated.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	now := m.now().UTC()
	n, err := m.store.DeactivateExpiredSessions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}

	m.mu.Lock()
	for id := range m.cache {
		sess, err := m.store.GetSession(ctx, id)
		if err != nil || !sess.IsActive || sess.Expired(now) {
			delete(m.cache, id)
		}
	}
	m.mu.Unlock()
	return n, nil
}

// ActiveCount reports how many sessions are live right now
func (m *Manager) ActiveCount(ctx context.Context) (int, error) {
	return m.store.ActiveSessionCount(ctx, m.now().UTC())
}
