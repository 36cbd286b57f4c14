package auth

import (
	"context"
	"strings"
)

// RoleModerator marks users allowed to remove other users' posts.
const RoleModerator = "moderator"

type ctxKeyRole struct{}

// WithRole injects the caller's role into context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRole{}).(string)
	return v, ok
}

// IsModerator reports whether RequireUser verified a moderator token.
func IsModerator(ctx context.Context) bool {
	role, _ := RoleFromContext(ctx)
	return strings.EqualFold(strings.TrimSpace(role), RoleModerator)
}
