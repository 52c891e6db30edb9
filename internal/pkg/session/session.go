package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalid covers unknown, malformed and revoked tokens.
	ErrInvalid = errors.New("session: invalid token")
	// ErrExpired is returned for a token past its expiry but still inside the retention window.
	ErrExpired = errors.New("session: expired")
)

// Mode controls whether validation extends a session.
type Mode string

const (
	// ModeAbsolute never moves ExpiresAt.
	ModeAbsolute Mode = "absolute"
	// ModeSliding moves ExpiresAt to now+TTL on each validation, capped by MaxLifetime.
	ModeSliding Mode = "sliding"
)

// ParseMode maps configuration text to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAbsolute, ModeSliding:
		return Mode(s), nil
	case "":
		return ModeSliding, nil
	default:
		return "", fmt.Errorf("session: unknown mode %q", s)
	}
}

// Session is an authenticated login. Token is only populated by Issue.
type Session struct {
	Token     string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Manager is the session lifecycle.
type Manager interface {
	Issue(ctx context.Context, userID int64) (*Session, error)
	Validate(ctx context.Context, token string) (*Session, error)
	// Revoke is idempotent: unknown or already revoked tokens are not an error.
	Revoke(ctx context.Context, token string) error
}

type authContextKey struct{}

// SetAuth stores the validated session in ctx.
func SetAuth(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, authContextKey{}, s)
}

// GetAuth returns the session stored by SetAuth, or nil.
func GetAuth(ctx context.Context) *Session {
	s, _ := ctx.Value(authContextKey{}).(*Session)
	return s
}

type tokenKey struct{}

// SetToken stores the raw cookie token in ctx so logout can revoke it.
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// GetToken returns the token stored by SetToken, or "".
func GetToken(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}
