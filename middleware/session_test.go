package middleware

import (
	"testing"
	"time"
)

func TestSessionIssueAndLookup(t *testing.T) {
	reg := NewSessionRegistry()

	token := reg.Issue("u1", "alice")
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	sess, ok := reg.Lookup(token)
	if !ok || sess.ExternalID != "u1" || sess.Username != "alice" {
		t.Fatalf("lookup failed: %+v ok=%v", sess, ok)
	}

	if _, ok := reg.Lookup("bogus"); ok {
		t.Fatal("unknown token must not resolve")
	}
}

func TestSessionRevoke(t *testing.T) {
	reg := NewSessionRegistry()
	token := reg.Issue("u1", "alice")

	reg.Revoke(token)
	if _, ok := reg.Lookup(token); ok {
		t.Fatal("revoked token must not resolve")
	}
}

func TestSessionExpiryIsLazy(t *testing.T) {
	reg := NewSessionRegistry()
	token := reg.Issue("u1", "alice")

	reg.mu.Lock()
	sess := reg.sessions[token]
	sess.ExpiresAt = time.Now().Add(-time.Minute)
	reg.sessions[token] = sess
	reg.mu.Unlock()

	if _, ok := reg.Lookup(token); ok {
		t.Fatal("expired session must not resolve")
	}
	reg.mu.RLock()
	_, still := reg.sessions[token]
	reg.mu.RUnlock()
	if still {
		t.Fatal("expired session should be dropped on lookup")
	}
}
