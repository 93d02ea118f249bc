// Package ginmw exposes the session guards as Gin middleware for BFF
// deployments.
//
// All middleware reads session state through *session.Manager and
// derives decisions via the guard package — it holds no session state
// of its own.
package ginmw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authkit "github.com/darasa/authkit-go"
	"github.com/darasa/authkit-go/guard"
	"github.com/darasa/authkit-go/session"
)

// Context keys for storing session data in gin.Context.
const (
	KeyUser   = "authkit_user"
	KeySchool = "authkit_school"
)

// ReasonSessionExpired is appended to login redirects so the login
// page can explain why the user landed there instead of showing a
// blank form.
const ReasonSessionExpired = "session_expired"

// apply translates a guard verdict into an HTTP response. Returns
// true when the request may proceed.
func apply(c *gin.Context, v guard.Verdict) bool {
	switch v.Decision {
	case guard.Loading:
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session restore in progress"})
		return false
	case guard.RedirectLogin:
		c.Redirect(http.StatusFound, v.RedirectTo+"?reason="+ReasonSessionExpired)
		c.Abort()
		return false
	case guard.RedirectDashboard:
		c.Redirect(http.StatusFound, v.RedirectTo)
		c.Abort()
		return false
	case guard.Disambiguate:
		// The user chooses; no silent cross-tenant redirect.
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":    "school mismatch",
			"homePath": v.HomePath,
		})
		return false
	default:
		return true
	}
}

// Auth returns middleware that requires an authenticated session and
// stores the identity in the context.
func Auth(mgr *session.Manager, opts ...guard.Option) gin.HandlerFunc {
	g := guard.NewRoute(nil, opts...)
	return func(c *gin.Context) {
		snap := mgr.Snapshot()
		if !apply(c, g.Evaluate(snap, c.Request.URL.Path)) {
			return
		}
		setSession(c, snap)
		c.Next()
	}
}

// RequireRoles returns middleware that admits only the given roles.
// Denied users are redirected to their own dashboard, never to a
// blank page.
func RequireRoles(mgr *session.Manager, roles []authkit.Role, opts ...guard.Option) gin.HandlerFunc {
	g := guard.NewRoute(roles, opts...)
	return func(c *gin.Context) {
		snap := mgr.Snapshot()
		if !apply(c, g.Evaluate(snap, c.Request.URL.Path)) {
			return
		}
		setSession(c, snap)
		c.Next()
	}
}

// TenantScope returns middleware that compares the URL slug parameter
// against the session tenant. A mismatch yields 409 with a
// disambiguation payload — a distinct state from 401.
func TenantScope(mgr *session.Manager, slugParam string, opts ...guard.Option) gin.HandlerFunc {
	g := guard.NewTenant(opts...)
	return func(c *gin.Context) {
		snap := mgr.Snapshot()
		if !apply(c, g.Evaluate(snap, c.Param(slugParam))) {
			return
		}
		setSession(c, snap)
		c.Next()
	}
}

func setSession(c *gin.Context, snap session.Snapshot) {
	c.Set(KeyUser, snap.User)
	c.Set(KeySchool, snap.School)

	ctx := c.Request.Context()
	ctx = authkit.WithUser(ctx, snap.User)
	ctx = authkit.WithSchool(ctx, snap.School)
	c.Request = c.Request.WithContext(ctx)
}

// GetUser returns the authenticated user from the Gin context.
func GetUser(c *gin.Context) *authkit.User {
	v, _ := c.Get(KeyUser)
	u, _ := v.(*authkit.User)
	return u
}

// GetSchool returns the session tenant from the Gin context.
func GetSchool(c *gin.Context) *authkit.School {
	v, _ := c.Get(KeySchool)
	s, _ := v.(*authkit.School)
	return s
}
