package auth

import (
	"context"
	"errors"

	"github.com/hud-code/binqr-server/internal/lifecycle"
)

// ErrUnauthenticated is returned when an operation requires a session and
// none is present.
var ErrUnauthenticated = errors.New("not authenticated")

type contextKey struct{}

// AuthContext carries the authenticated caller through a request. State is
// the lifecycle stage derived when the session was validated.
type AuthContext struct {
	UserID    string
	SessionID int64
	State     lifecycle.State
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// UserID returns the authenticated user's id, or "" without a session.
func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

// State returns the caller's lifecycle state; callers without a session are
// Unauthenticated.
func State(ctx context.Context) lifecycle.State {
	ac, ok := FromContext(ctx)
	if !ok {
		return lifecycle.StateUnauthenticated
	}
	return ac.State
}
