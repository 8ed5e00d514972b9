package session

import (
	"context"
	"errors"
)

// AdminRole is the role id that may look at other users' timers
const AdminRole = "1"

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const sessionKey contextKey = "session"

var (
	// ErrNoSessionInContext is returned when the request carries no session
	ErrNoSessionInContext = errors.New("no session in context")
)

// Session is the caller's login context. It is read-only once the token
// has been validated.
type Session struct {
	UserID int
	Role   string
	// Token is the raw bearer token, forwarded to the backend on the caller's behalf
	Token string
}

// IsAdmin reports whether the session carries the admin role
func (s Session) IsAdmin() bool {
	return s.Role == AdminRole
}

// CanView reports whether the session may read the timer of userID
func (s Session) CanView(userID int) bool {
	return s.IsAdmin() || s.UserID == userID
}

// WithSession adds the session to the context.
// This should be called by middleware after validating the token.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext extracts the session from context.
// Returns ErrNoSessionInContext if none was set.
func FromContext(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(sessionKey).(Session)
	if !ok || s.UserID == 0 {
		return Session{}, ErrNoSessionInContext
	}
	return s, nil
}

// Token returns the bearer token of the session in ctx, or "" when there is none
func Token(ctx context.Context) string {
	s, err := FromContext(ctx)
	if err != nil {
		return ""
	}
	return s.Token
}
