package authkit

import "context"

type ctxKey string

const (
	ctxKeyUser   ctxKey = "authkit_user"
	ctxKeySchool ctxKey = "authkit_school"
)

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// UserFromContext extracts the authenticated user from the context,
// or nil if none is set.
func UserFromContext(ctx context.Context) *User {
	v, _ := ctx.Value(ctxKeyUser).(*User)
	return v
}

// WithSchool stores the session tenant in the context.
func WithSchool(ctx context.Context, s *School) context.Context {
	return context.WithValue(ctx, ctxKeySchool, s)
}

// SchoolFromContext extracts the session tenant from the context,
// or nil if none is set.
func SchoolFromContext(ctx context.Context) *School {
	v, _ := ctx.Value(ctxKeySchool).(*School)
	return v
}

// RoleFromContext returns the role of the context user, or the empty
// Role when unauthenticated.
func RoleFromContext(ctx context.Context) Role {
	if u := UserFromContext(ctx); u != nil {
		return u.Role
	}
	return ""
}
