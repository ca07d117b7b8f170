// Package session holds the process-wide session registry. The opaque
// token travels in a signed cookie; the server side keeps the
// authoritative state here, keyed by the token's SHA-256.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OlsenSM91/Open-Server-Shares/internal/util"
)

// Session binds a browser client to an authentication state.
// Authenticated is set through MarkAuthenticated only, after a
// successful directory check.
type Session struct {
	Token         string // opaque token as issued to the client
	Username      string
	Authenticated bool
	CreatedAt     time.Time
	LastSeen      time.Time
}

// Store is an in-memory session registry safe for concurrent requests.
// Entries expire after IdleTimeout of inactivity (0 disables expiry).
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session // keyed by SHA-256 of the token
	idleTimeout time.Duration
	now         func() time.Time
}

func NewStore(idleTimeout time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create issues a new unauthenticated session and returns its token.
func (s *Store) Create(username string) (string, error) {
	random, err := util.CryptoRandomString(32)
	if err != nil {
		return "", err
	}
	token := uuid.New().String() + random
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[util.SHA256Hex(token)] = &Session{
		Token:         token,
		Username:      username,
		Authenticated: false,
		CreatedAt:     now,
		LastSeen:      now,
	}
	return token, nil
}

// Get returns a copy of the session for token, or false when the token
// is unknown or the session has idled out. A successful lookup counts
// as activity.
func (s *Store) Get(token string) (Session, bool) {
	key := util.SHA256Hex(token)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return Session{}, false
	}
	if s.expired(sess, now) {
		delete(s.sessions, key)
		return Session{}, false
	}
	sess.LastSeen = now
	return *sess, true
}

// MarkAuthenticated flips the session's authenticated flag. This is the
// only code path that may set it; callers invoke it strictly after an
// Allow result from the directory.
func (s *Store) MarkAuthenticated(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[util.SHA256Hex(token)]
	if !ok {
		return false
	}
	sess.Authenticated = true
	return true
}

// Invalidate destroys the session for token. Unknown tokens are a
// no-op, so logout is idempotent.
func (s *Store) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, util.SHA256Hex(token))
}

// ExpireIdle removes every session idle past the timeout and returns
// how many were dropped. Run periodically by the janitor job.
func (s *Store) ExpireIdle() int {
	if s.idleTimeout <= 0 {
		return 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions, for metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Clear drops all sessions, used at shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*Session)
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.idleTimeout > 0 && now.Sub(sess.LastSeen) > s.idleTimeout
}
