// Package guard derives render/deny decisions from session state.
//
// Guards own no state of their own: every verdict is a pure function
// of a session snapshot (and, for the tenant guard, the URL slug), so
// they can never disagree with the session manager about who is
// logged in.
package guard

import (
	"io"
	"log/slog"

	authkit "github.com/darasa/authkit-go"
	"github.com/darasa/authkit-go/audit"
	"github.com/darasa/authkit-go/metrics"
	"github.com/darasa/authkit-go/session"
)

// Decision is the outcome of a guard evaluation.
type Decision int

const (
	// Allow: render the protected content.
	Allow Decision = iota

	// Loading: session restore is in flight; show a loading
	// indicator, decide nothing yet.
	Loading

	// RedirectLogin: no session; send the user to the login page.
	RedirectLogin

	// RedirectDashboard: authenticated but the role is not in the
	// required set; send the user to their own dashboard, never to a
	// blank or error page.
	RedirectDashboard

	// Disambiguate: authenticated, but the URL tenant differs from
	// the session tenant. Shown a choice, never silently redirected —
	// a silent cross-tenant redirect would leak one tenant's URL
	// context into another's session.
	Disambiguate
)

// String returns a stable name for logging.
func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case Disambiguate:
		return "disambiguate"
	default:
		return "allow"
	}
}

// Verdict is a decision plus the paths the UI needs to act on it.
type Verdict struct {
	Decision Decision

	// RedirectTo is set for RedirectLogin and RedirectDashboard.
	RedirectTo string

	// HomePath is set for Disambiguate: the "go to your school"
	// target inside the session's own tenant.
	HomePath string
}

// Option configures a guard.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Logger
}

// WithLogger sets a structured logger for denials.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics sets the metrics recorder for denials.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithAudit sets the audit logger for denials.
func WithAudit(a *audit.Logger) Option {
	return func(c *config) { c.audit = a }
}

func newConfig(opts []Option) config {
	c := config{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics.New(false),
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Route gates content on a required role set.
type Route struct {
	allowed []authkit.Role
	cfg     config
}

// NewRoute creates a route guard. An empty allowed set admits any
// authenticated role.
func NewRoute(allowed []authkit.Role, opts ...Option) *Route {
	return &Route{allowed: allowed, cfg: newConfig(opts)}
}

// Evaluate maps a session snapshot to a verdict for path (used only
// for logging denials).
func (g *Route) Evaluate(snap session.Snapshot, path string) Verdict {
	if snap.State == session.Restoring {
		return Verdict{Decision: Loading}
	}
	if !snap.IsAuthenticated || snap.User == nil {
		return Verdict{Decision: RedirectLogin, RedirectTo: authkit.LoginPath}
	}

	if len(g.allowed) > 0 && !snap.User.Role.In(g.allowed...) {
		slug := ""
		if snap.School != nil {
			slug = snap.School.Slug
		}
		home := snap.User.Role.LandingPath(slug)

		g.cfg.logger.Warn("route denied",
			"user", snap.User.ID, "role", snap.User.Role, "path", path)
		g.cfg.metrics.RecordGuardDenial(string(snap.User.Role))
		if g.cfg.audit != nil {
			g.cfg.audit.Log(audit.Event{
				Action: audit.ActionGuardDenied,
				Result: "denied",
				UserID: snap.User.ID,
				School: slug,
				Path:   path,
			})
		}
		return Verdict{Decision: RedirectDashboard, RedirectTo: home}
	}

	return Verdict{Decision: Allow}
}

// Tenant gates content on the URL tenant matching the session tenant.
// Layered above the route guard; a mismatch is a distinct state from
// unauthenticated and is never collapsed into it.
type Tenant struct {
	cfg config
}

// NewTenant creates a tenant-scope guard.
func NewTenant(opts ...Option) *Tenant {
	return &Tenant{cfg: newConfig(opts)}
}

// Evaluate compares the URL-embedded slug against the session tenant.
func (g *Tenant) Evaluate(snap session.Snapshot, urlSlug string) Verdict {
	if snap.State == session.Restoring {
		return Verdict{Decision: Loading}
	}
	if !snap.IsAuthenticated || snap.School == nil {
		return Verdict{Decision: RedirectLogin, RedirectTo: authkit.LoginPath}
	}

	urlSlug = authkit.NormalizeSlug(urlSlug)
	if urlSlug == "" || urlSlug == snap.School.Slug {
		return Verdict{Decision: Allow}
	}

	role := authkit.Role("")
	if snap.User != nil {
		role = snap.User.Role
	}
	g.cfg.logger.Warn("tenant mismatch",
		"session_school", snap.School.Slug, "url_school", urlSlug)
	return Verdict{
		Decision: Disambiguate,
		HomePath: role.LandingPath(snap.School.Slug),
	}
}
