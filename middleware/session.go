package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "relay_session"

const sessionTTL = 24 * time.Hour

// Session is what the login callback stores and the user-context
// middleware hands to handlers. The core never revalidates it.
type Session struct {
	ExternalID string
	Username   string
	ExpiresAt  time.Time
}

// SessionRegistry is an in-process token → session map. Session
// persistence is a thin collaborator here; losing sessions on restart
// just forces a re-login.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]Session)}
}

// Issue creates a session and returns its opaque token.
func (r *SessionRegistry) Issue(externalID, username string) string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)

	r.mu.Lock()
	r.sessions[token] = Session{
		ExternalID: externalID,
		Username:   username,
		ExpiresAt:  time.Now().Add(sessionTTL),
	}
	r.mu.Unlock()
	return token
}

// Lookup resolves a token; expired sessions are dropped lazily.
func (r *SessionRegistry) Lookup(token string) (Session, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[token]
	r.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if time.Now().After(sess.ExpiresAt) {
		r.mu.Lock()
		delete(r.sessions, token)
		r.mu.Unlock()
		return Session{}, false
	}
	return sess, true
}

func (r *SessionRegistry) Revoke(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}
