package shop

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/session"
	"github.com/rexliu/motoshop/pkg/storage"
)

// CredentialChecker decides whether a presented password matches the stored
// credential. The storage format of the credential is its own business.
type CredentialChecker interface {
	Check(stored, presented string) bool
}

// CredentialFunc adapts a function to CredentialChecker.
type CredentialFunc func(stored, presented string) bool

func (f CredentialFunc) Check(stored, presented string) bool { return f(stored, presented) }

// PlainCredentials compares in constant time.
var PlainCredentials = CredentialFunc(func(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
})

// Auth logs staff in and resolves session tokens.
type Auth struct {
	base
	sessions session.Store
	checker  CredentialChecker
}

// NewAuth builds the service. A nil checker uses PlainCredentials.
func NewAuth(repo storage.Repository, sessions session.Store, checker CredentialChecker, opts ...Option) *Auth {
	if checker == nil {
		checker = PlainCredentials
	}
	return &Auth{base: newBase(repo, "auth", opts), sessions: sessions, checker: checker}
}

var errBadLogin = fmt.Errorf("%w: invalid username or password", core.ErrUnauthorized)

// Login checks credentials and issues a session for an active user.
func (a *Auth) Login(ctx context.Context, username, password string) (session.Session, core.User, error) {
	u, err := read(ctx, a.repo, func(tx storage.Tx) (core.User, error) { return tx.GetUserByUsername(ctx, username) })
	if errors.Is(err, core.ErrNotFound) {
		a.log.Infow("login rejected", "username", username, "reason", "unknown user")
		return session.Session{}, core.User{}, errBadLogin
	}
	if err != nil {
		return session.Session{}, core.User{}, err
	}
	if !a.checker.Check(u.Password, password) {
		a.log.Infow("login rejected", "username", username, "reason", "bad password")
		return session.Session{}, core.User{}, errBadLogin
	}
	if u.Status != core.UserActive {
		a.log.Infow("login rejected", "username", username, "reason", "inactive")
		return session.Session{}, core.User{}, fmt.Errorf("%w: account is inactive", core.ErrUnauthorized)
	}
	s, err := a.sessions.Issue(ctx, u)
	if err != nil {
		return session.Session{}, core.User{}, err
	}
	u.Password = ""
	a.log.Infow("login", "user", u.ID, "role", u.Role)
	return s, u, nil
}

func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.sessions.Revoke(ctx, token)
}

// Validate resolves a token; unknown or expired tokens wrap core.ErrUnauthorized.
func (a *Auth) Validate(ctx context.Context, token string) (session.Session, error) {
	return a.sessions.Lookup(ctx, token)
}
