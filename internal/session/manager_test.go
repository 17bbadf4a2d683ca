package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxintel/taxintel/internal/storage/sqlite"
	"github.com/taxintel/taxintel/internal/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewManager(store, Config{TTL: 2 * time.Hour, DefaultLanguage: "en"})
}

func TestGetOrCreateNewSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreate(ctx, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "en", sess.Language)
	assert.True(t, sess.IsActive)
	assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))
}

func TestGetOrCreateReusesLiveSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, "", "es")
	require.NoError(t, err)

	second, err := m.GetOrCreate(ctx, first.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "es", second.Language)
}

func TestGetOrCreateUnknownIDIssuesNew(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.GetOrCreate(context.Background(), "not-a-session", "")
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-session", sess.ID)
}

func TestGetOrCreateExpiredSessionIssuesNew(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Now().UTC()
	m.now = func() time.Time { return base }
	first, err := m.GetOrCreate(ctx, "", "")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(3 * time.Hour) }
	second, err := m.GetOrCreate(ctx, first.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAddExchangeAndHistory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreate(ctx, "", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := m.AddExchange(ctx, &types.Conversation{
			SessionID:         sess.ID,
			UserMessage:       "what is the eitc",
			AssistantResponse: "a refundable credit",
			Language:          "en",
		})
		require.NoError(t, err)
	}

	history, err := m.History(ctx, sess.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	updated, err := m.GetOrCreate(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, updated.ConversationCount)
}

func TestHistoryColdCacheFallsBackToStore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreate(ctx, "", "")
	require.NoError(t, err)
	require.NoError(t, m.AddExchange(ctx, &types.Conversation{
		SessionID: sess.ID, UserMessage: "q", AssistantResponse: "a", Language: "en",
	}))

	// Simulate a restart by clearing the cache.
	m.mu.Lock()
	m.cache = make(map[string][]*types.Conversation)
	m.mu.Unlock()

	history, err := m.History(ctx, sess.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHistoryCacheTrimmed(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreate(ctx, "", "")
	require.NoError(t, err)
	for i := 0; i < maxCachedHistory+5; i++ {
		require.NoError(t, m.AddExchange(ctx, &types.Conversation{
			SessionID: sess.ID, UserMessage: "q", AssistantResponse: "a", Language: "en",
		}))
	}

	m.mu.Lock()
	cached := len(m.cache[sess.ID])
	m.mu.Unlock()
	assert.Equal(t, maxCachedHistory, cached)
}

func TestCleanupExpired(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Now().UTC()
	m.now = func() time.Time { return base }
	old, err := m.GetOrCreate(ctx, "", "")
	require.NoError(t, err)
	require.NoError(t, m.AddExchange(ctx, &types.Conversation{
		SessionID: old.ID, UserMessage: "q", AssistantResponse: "a", Language: "en",
	}))

	m.now = func() time.Time { return base.Add(3 * time.Hour) }
	_, err = m.GetOrCreate(ctx, "", "")
	require.NoError(t, err)

	n, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m.mu.Lock()
	_, oldCached := m.cache[old.ID]
	m.mu.Unlock()
	assert.False(t, oldCached, "expired session history should be evicted")

	count, err := m.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
