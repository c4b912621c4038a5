// Package session issues and checks login tokens.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rexliu/motoshop/pkg/core"
)

// DefaultTTL bounds how long a token stays valid.
const DefaultTTL = 12 * time.Hour

// Session is what a token resolves to.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      core.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps sessions. Lookup of an unknown or expired token fails with
// core.ErrUnauthorized.
type Store interface {
	Issue(ctx context.Context, u core.User) (Session, error)
	Lookup(ctx context.Context, token string) (Session, error)
	Revoke(ctx context.Context, token string) error
	Close() error
}

func newSession(u core.User, ttl time.Duration, now time.Time) Session {
	return Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		ExpiresAt: now.Add(ttl),
	}
}

func unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", core.ErrUnauthorized, reason)
}

// Memory is a process-local Store.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemory returns an empty store. ttl <= 0 uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, sessions: make(map[string]Session)}
}

func (m *Memory) Issue(_ context.Context, u core.User) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	s := newSession(u, m.ttl, now)
	m.sessions[s.Token] = s
	return s, nil
}

func (m *Memory) Lookup(_ context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, unauthorized("missing token")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return Session{}, unauthorized("unknown token")
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, token)
		return Session{}, unauthorized("token expired")
	}
	return s, nil
}

func (m *Memory) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports live sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
	return len(m.sessions)
}

func (m *Memory) sweepLocked(now time.Time) {
	for tok, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, tok)
		}
	}
}
