package auth

import "context"

type contextKey struct{}

// AuthContext identifies the caller of a scoped operation. The zero value
// means no session.
type AuthContext struct {
	UserID    string
	SessionID string
	Email     string
}

// Authenticated reports whether the context carries a user.
func (ac AuthContext) Authenticated() bool {
	return ac.UserID != ""
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}
