package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(0)

	token, err := store.Create("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, ok := store.Get(token)
	require.True(t, ok)
	assert.Equal(t, "alice", sess.Username)
	assert.False(t, sess.Authenticated, "a fresh session must not be authenticated")
	assert.Equal(t, 1, store.Len())
}

func TestStore_TokensAreUnique(t *testing.T) {
	store := NewStore(0)

	a, err := store.Create("alice")
	require.NoError(t, err)
	b, err := store.Create("alice")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, store.Len())
}

func TestStore_MarkAuthenticated(t *testing.T) {
	store := NewStore(0)
	token, err := store.Create("bob")
	require.NoError(t, err)

	require.True(t, store.MarkAuthenticated(token))

	sess, ok := store.Get(token)
	require.True(t, ok)
	assert.True(t, sess.Authenticated)

	assert.False(t, store.MarkAuthenticated("no-such-token"))
}

func TestStore_Invalidate(t *testing.T) {
	store := NewStore(0)
	token, err := store.Create("bob")
	require.NoError(t, err)

	store.Invalidate(token)

	_, ok := store.Get(token)
	assert.False(t, ok)

	// Logout twice is fine.
	store.Invalidate(token)
	assert.Equal(t, 0, store.Len())
}

func TestStore_UnknownToken(t *testing.T) {
	store := NewStore(0)
	_, ok := store.Get("made-up-token")
	assert.False(t, ok)
}

func TestStore_IdleExpiry(t *testing.T) {
	store := NewStore(15 * time.Minute)
	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	token, err := store.Create("alice")
	require.NoError(t, err)
	require.True(t, store.MarkAuthenticated(token))

	// Activity inside the window keeps the session alive.
	current = current.Add(10 * time.Minute)
	_, ok := store.Get(token)
	require.True(t, ok)

	// 10 more minutes of silence is still within the refreshed window.
	current = current.Add(10 * time.Minute)
	_, ok = store.Get(token)
	require.True(t, ok)

	// Past the idle window the session is gone.
	current = current.Add(16 * time.Minute)
	_, ok = store.Get(token)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStore_ExpireIdleSweep(t *testing.T) {
	store := NewStore(time.Minute)
	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	for range 3 {
		_, err := store.Create("alice")
		require.NoError(t, err)
	}
	current = current.Add(30 * time.Second)
	fresh, err := store.Create("bob")
	require.NoError(t, err)

	current = current.Add(45 * time.Second)
	removed := store.ExpireIdle()

	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, store.Len())
	_, ok := store.Get(fresh)
	assert.True(t, ok)
}

func TestStore_ExpiryDisabled(t *testing.T) {
	store := NewStore(0)
	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	token, err := store.Create("alice")
	require.NoError(t, err)

	current = current.Add(24 * time.Hour)
	assert.Equal(t, 0, store.ExpireIdle())
	_, ok := store.Get(token)
	assert.True(t, ok)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(time.Hour)
	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				token, err := store.Create("worker")
				if err != nil {
					t.Error(err)
					return
				}
				store.MarkAuthenticated(token)
				if _, ok := store.Get(token); !ok {
					t.Error("session vanished")
					return
				}
				store.Invalidate(token)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len())
}
