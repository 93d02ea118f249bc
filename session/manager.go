// Package session owns the authenticated-session state machine: who
// is logged in, to which school, with what credentials.
//
// The Manager is the single writer of both the in-memory session and
// the persisted record. Persisted-storage writes happen-before the
// in-memory flips other components observe, so a process restart
// racing a login never finds "authenticated in memory but nothing
// stored". Consumers read snapshots or subscribe to changes; nothing
// else mutates session state.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	authkit "github.com/darasa/authkit-go"
	"github.com/darasa/authkit-go/audit"
	"github.com/darasa/authkit-go/metrics"
	"github.com/darasa/authkit-go/store"
	"github.com/darasa/authkit-go/transport"
)

// State is the session lifecycle state.
type State int

const (
	// Unauthenticated: no session.
	Unauthenticated State = iota

	// Restoring: attempting silent restore from the persisted record.
	Restoring

	// Authenticated: live session with valid credentials.
	Authenticated

	// Refreshing: credential renewal in flight. Callers still observe
	// IsAuthenticated == true.
	Refreshing

	// LoggingOut: local teardown in progress.
	LoggingOut
)

// String returns a stable name for logging.
func (s State) String() string {
	switch s {
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case LoggingOut:
		return "logging_out"
	default:
		return "unauthenticated"
	}
}

// Snapshot is the read-only, point-in-time view handed to guards and
// pages.
type Snapshot struct {
	State           State
	User            *authkit.User
	School          *authkit.School
	IsAuthenticated bool
	IsLoading       bool
}

// ErrForcedLogout signals that the session was destroyed by the SDK
// itself because credential refresh failed. It is what callers see in
// place of a raw expiry error.
var ErrForcedLogout = errors.New("session: credentials expired and refresh failed")

// Manager is the single source of truth for session state.
type Manager struct {
	backend authkit.Backend
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Logger

	mu      sync.RWMutex
	state   State
	user    *authkit.User
	school  *authkit.School
	creds   authkit.Credentials
	loading bool
	subs    map[int]func(Snapshot)
	nextSub int

	refreshGroup singleflight.Group
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithAudit sets the audit logger.
func WithAudit(a *audit.Logger) Option {
	return func(m *Manager) { m.audit = a }
}

// NewManager creates a session manager over a backend and a record
// store. Construct one per process and pass it by reference; there is
// no package-level instance.
func NewManager(backend authkit.Backend, st store.Store, opts ...Option) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("session: backend is required")
	}
	if st == nil {
		return nil, errors.New("session: store is required")
	}

	m := &Manager{
		backend: backend,
		store:   st,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics.New(false),
		subs:    make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Close releases resources. The session itself is left intact; call
// Logout first to destroy it.
func (m *Manager) Close() error {
	if m.audit != nil {
		return m.audit.Close()
	}
	return nil
}

// Attach installs the manager's bearer and refresh middleware on a
// transport client. Every request sent through that client then
// carries the current access credential and participates in the
// one-shot refresh protocol.
func (m *Manager) Attach(t *transport.Client) {
	t.Use(m.bearerMiddleware(), m.refreshMiddleware())
}

// Snapshot returns the current read-only view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:           m.state,
		User:            m.user,
		School:          m.school,
		IsAuthenticated: m.state == Authenticated || m.state == Refreshing,
		IsLoading:       m.loading || m.state == Restoring || m.state == Refreshing,
	}
}

// Subscribe registers fn to be called after every state change.
// Returns an unsubscribe function.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// notify delivers the current snapshot to subscribers, outside the
// lock.
func (m *Manager) notify() {
	m.mu.RLock()
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Login verifies credentials against the backend and establishes a
// session. The tenant slug is trimmed and lowercased; all other
// validation is the backend's. On failure any partial local state is
// cleared and the failure propagates to the caller with its kind
// intact.
func (m *Manager) Login(ctx context.Context, email, password, slug string) error {
	email = strings.TrimSpace(email)
	slug = authkit.NormalizeSlug(slug)

	m.metrics.RecordLogin()
	m.setLoading(true)
	defer m.setLoading(false)

	res, err := m.backend.Login(ctx, email, password, slug)
	if err != nil {
		m.metrics.RecordLoginFailure(authkit.KindOf(err).String())
		m.auditEvent(audit.Event{Action: audit.ActionLogin, Result: "failure", Email: email, School: slug, Error: err.Error()})
		m.clearLocal(ctx)
		return err
	}

	// Storage before memory: a crash between the two leaves a stored
	// session that the next start silently restores, never the
	// reverse.
	rec := &store.Record{
		AccessToken:  res.Credentials.AccessToken,
		RefreshToken: res.Credentials.RefreshToken,
		User:         &res.User,
		School:       &res.School,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		m.metrics.RecordLoginFailure("store")
		m.clearLocal(ctx)
		return authkit.WrapError(authkit.KindNetwork, err)
	}

	m.mu.Lock()
	m.creds = res.Credentials
	m.user = &res.User
	m.school = &res.School
	m.state = Authenticated
	m.mu.Unlock()
	m.notify()

	m.auditEvent(audit.Event{Action: audit.ActionLogin, Result: "success", UserID: res.User.ID, Email: email, School: res.School.Slug})
	m.logger.Info("login succeeded", "user", res.User.ID, "school", res.School.Slug, "role", res.User.Role)
	return nil
}

// Logout destroys the session. Local clearing is unconditional and
// happens before the best-effort remote invalidation, whose failure
// is logged and otherwise ignored. Calling Logout when already
// unauthenticated is a no-op.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	if m.state == Unauthenticated && m.user == nil {
		m.mu.Unlock()
		return
	}
	token := m.creds.AccessToken
	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}
	m.state = LoggingOut
	m.mu.Unlock()
	m.notify()

	m.clearLocal(ctx)
	m.auditEvent(audit.Event{Action: audit.ActionLogout, Result: "success", UserID: userID})

	if token != "" {
		// The in-memory credential is already gone; carry it on the
		// context so the bearer middleware can still attach it.
		if err := m.backend.Logout(transport.ContextWithToken(ctx, token)); err != nil {
			m.logger.Warn("remote logout failed", "error", err)
		}
	}
}

// CheckAuth verifies the persisted credential against the backend.
// Used at startup (silent restore) and for on-demand re-verification.
// It never returns an error: any failure clears state and yields
// false.
func (m *Manager) CheckAuth(ctx context.Context) bool {
	rec, err := m.store.Load(ctx)
	if err != nil || rec.Empty() {
		m.clearLocal(ctx)
		return false
	}

	m.mu.Lock()
	m.state = Restoring
	m.creds = authkit.Credentials{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}
	// Best-effort view while the verification round-trip is in
	// flight; overwritten by the verified identity below.
	m.user = rec.User
	m.school = rec.School
	m.mu.Unlock()
	m.notify()

	// A decodably-expired access credential with no refresh credential
	// cannot survive verification; skip the doomed round-trip.
	if exp, ok := tokenExpiry(rec.AccessToken); ok && time.Now().After(exp) && rec.RefreshToken == "" {
		m.metrics.RecordRestore("failed")
		m.clearLocal(ctx)
		return false
	}

	res, err := m.backend.Me(ctx)
	if err != nil {
		// Expired credential, failed refresh, network or server error:
		// every restore failure lands in the same place.
		m.metrics.RecordRestore("failed")
		m.auditEvent(audit.Event{Action: audit.ActionRestore, Result: "failure", Error: err.Error()})
		m.clearLocal(ctx)
		return false
	}

	// Rewrite the record: the refresh middleware may have rotated the
	// credentials during Me, and the identity may have changed.
	m.mu.RLock()
	creds := m.creds
	m.mu.RUnlock()
	fresh := &store.Record{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         &res.User,
		School:       &res.School,
	}
	if err := m.store.Save(ctx, fresh); err != nil {
		m.metrics.RecordRestore("failed")
		m.clearLocal(ctx)
		return false
	}

	m.mu.Lock()
	m.user = &res.User
	m.school = &res.School
	m.state = Authenticated
	m.mu.Unlock()
	m.notify()

	m.metrics.RecordRestore("ok")
	m.auditEvent(audit.Event{Action: audit.ActionRestore, Result: "success", UserID: res.User.ID, School: res.School.Slug})
	return true
}

// UpdateUser merges the patch into the current identity and
// re-persists it. Local only; the backend is not contacted. No-op
// when unauthenticated.
func (m *Manager) UpdateUser(ctx context.Context, patch authkit.UserPatch) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	updated := *m.user
	patch.Apply(&updated)
	creds := m.creds
	school := m.school
	m.mu.Unlock()

	rec := &store.Record{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         &updated,
		School:       school,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		m.logger.Warn("persist user update failed", "error", err)
	}

	m.mu.Lock()
	m.user = &updated
	m.mu.Unlock()
	m.notify()
}

// RedirectAfterLogin returns the canonical landing path for the
// session's role, and whether a redirect should happen at all. A
// redirect is only proposed when currentPath is a login or root
// context, so established in-app navigation is never hijacked.
func (m *Manager) RedirectAfterLogin(currentPath string) (string, bool) {
	m.mu.RLock()
	user, school, state := m.user, m.school, m.state
	m.mu.RUnlock()

	if state != Authenticated || user == nil {
		return "", false
	}
	if !isLoginContext(currentPath) {
		return "", false
	}
	slug := ""
	if school != nil {
		slug = school.Slug
	}
	return user.Role.LandingPath(slug), true
}

func isLoginContext(path string) bool {
	path = strings.TrimSpace(path)
	return path == "" || path == "/" || path == authkit.LoginPath ||
		strings.HasPrefix(path, authkit.LoginPath+"?") ||
		strings.HasPrefix(path, authkit.LoginPath+"/")
}

// --- derived accessors ---

// User returns the current identity, or nil.
func (m *Manager) User() *authkit.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// School returns the session tenant, or nil.
func (m *Manager) School() *authkit.School {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.school
}

// FullName returns the identity's display name, or "" when logged
// out.
func (m *Manager) FullName() string { return m.User().FullName() }

// Avatar returns the profile picture URL or an initials fallback.
func (m *Manager) Avatar() string { return m.User().AvatarOrInitials() }

// HasRole reports whether the current identity holds any of the given
// roles.
func (m *Manager) HasRole(roles ...authkit.Role) bool {
	u := m.User()
	if u == nil {
		return false
	}
	return u.Role.In(roles...)
}

// Role-membership predicates.
func (m *Manager) IsAdmin() bool        { return m.HasRole(authkit.RoleAdmin) }
func (m *Manager) IsTeacher() bool      { return m.HasRole(authkit.RoleTeacher) }
func (m *Manager) IsParent() bool       { return m.HasRole(authkit.RoleParent) }
func (m *Manager) IsBursar() bool       { return m.HasRole(authkit.RoleBursar) }
func (m *Manager) IsStudent() bool      { return m.HasRole(authkit.RoleStudent) }
func (m *Manager) IsSecretary() bool    { return m.HasRole(authkit.RoleSecretary) }
func (m *Manager) IsSupportStaff() bool { return m.HasRole(authkit.RoleSupportStaff) }

// --- internals ---

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
	m.notify()
}

// clearLocal unconditionally destroys local session state, storage
// first. A storage failure is logged but never preserves the
// in-memory session.
func (m *Manager) clearLocal(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("clear persisted session failed", "error", err)
	}

	m.mu.Lock()
	m.creds = authkit.Credentials{}
	m.user = nil
	m.school = nil
	m.state = Unauthenticated
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) accessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AccessToken
}

func (m *Manager) refreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.RefreshToken
}

func (m *Manager) auditEvent(e audit.Event) {
	if m.audit == nil {
		return
	}
	m.audit.Log(e)
}
