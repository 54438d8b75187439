package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "shopsight_session"

// DefaultSessionTTL is used when no TTL is configured.
const DefaultSessionTTL = 12 * time.Hour

type session struct {
	identity  Identity
	expiresAt time.Time
}

// Manager issues and validates in-memory session tokens. Sessions do not
// survive a restart; there is nothing durable to protect here.
type Manager struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]session
}

// NewManager creates a session manager with the given TTL.
// Values less than or equal to 0 fall back to DefaultSessionTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		ttl:      ttl,
		sessions: make(map[string]session),
	}
}

// Create issues a new session token for the given identity.
func (m *Manager) Create(id Identity) string {
	token := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpiredLocked()
	m.sessions[token] = session{
		identity:  id,
		expiresAt: time.Now().Add(m.ttl),
	}
	return token
}

// Lookup resolves a token to its identity. Expired or unknown tokens fail.
func (m *Manager) Lookup(token string) (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return Identity{}, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(m.sessions, token)
		return Identity{}, false
	}
	return sess.identity, true
}

// Revoke invalidates a token. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) purgeExpiredLocked() {
	now := time.Now()
	for token, sess := range m.sessions {
		if now.After(sess.expiresAt) {
			delete(m.sessions, token)
		}
	}
}

// SetCookie writes the session cookie on a response.
func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(m.ttl),
	})
}

// ClearCookie expires the session cookie on a response.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
