// Package fake provides an in-memory authkit.Backend for testing.
//
// Use fake.New in unit tests to exercise session flows without a
// network. Failure injection fields simulate rejected logins, expired
// credentials, and unreachable backends.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authkit "github.com/darasa/authkit-go"
)

// account is a seeded login.
type account struct {
	password string
	user     authkit.User
	school   authkit.School
}

// Backend implements authkit.Backend in memory.
type Backend struct {
	mu       sync.Mutex
	accounts map[string]account // email → account
	key      []byte
	tokenTTL time.Duration

	// Failure injection. When set, the corresponding operation fails
	// with the given error instead of running.
	LoginErr   error
	LogoutErr  error
	MeErr      error
	RefreshErr error

	// Call counters for assertions.
	LoginCalls   int
	LogoutCalls  int
	MeCalls      int
	RefreshCalls int

	// current is the identity of the last successful login/refresh,
	// returned by Me.
	current *account
}

// Option seeds the fake backend.
type Option func(*Backend)

// WithAccount seeds a login. Role is normalized like real backend
// payloads are.
func WithAccount(email, password string, user authkit.User, school authkit.School) Option {
	return func(b *Backend) {
		user.Role = authkit.NormalizeRole(string(user.Role))
		school.Slug = authkit.NormalizeSlug(school.Slug)
		b.accounts[email] = account{password: password, user: user, school: school}
	}
}

// WithTokenTTL sets the lifetime of issued access tokens.
// Default: 1 hour. A negative TTL issues already-expired tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(b *Backend) { b.tokenTTL = d }
}

// New creates a fake backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		accounts: make(map[string]account),
		key:      []byte("fake-signing-key"),
		tokenTTL: time.Hour,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// compile-time check
var _ authkit.Backend = (*Backend)(nil)

// issue mints an HS256 token so expiry peeking behaves like the real
// backend's JWTs.
func (b *Backend) issue(email string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": email,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.key)
	return tok
}

// Login checks the seeded password and tenant slug.
func (b *Backend) Login(_ context.Context, email, password, slug string) (*authkit.LoginResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LoginCalls++

	if b.LoginErr != nil {
		return nil, b.LoginErr
	}

	acct, ok := b.accounts[email]
	if !ok || acct.password != password {
		return nil, authkit.NewError(authkit.KindAuthInvalid, "Invalid credentials")
	}
	if authkit.NormalizeSlug(slug) != acct.school.Slug {
		return nil, authkit.NewError(authkit.KindAuthInvalid, "Unknown school")
	}

	b.current = &acct
	return &authkit.LoginResult{
		Credentials: authkit.Credentials{
			AccessToken:  b.issue(email, b.tokenTTL),
			RefreshToken: b.issue(email, 30*24*time.Hour),
		},
		User:   acct.user,
		School: acct.school,
	}, nil
}

// Logout records the call and fails only when injected.
func (b *Backend) Logout(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LogoutCalls++
	return b.LogoutErr
}

// Me returns the identity of the last login/refresh.
func (b *Backend) Me(context.Context) (*authkit.MeResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.MeCalls++

	if b.MeErr != nil {
		return nil, b.MeErr
	}
	if b.current == nil {
		return nil, authkit.NewError(authkit.KindAuthExpired, "no session")
	}
	return &authkit.MeResult{User: b.current.user, School: b.current.school}, nil
}

// Refresh issues a new pair for any non-empty refresh credential.
func (b *Backend) Refresh(_ context.Context, refreshToken string) (*authkit.Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RefreshCalls++

	if b.RefreshErr != nil {
		return nil, b.RefreshErr
	}
	if refreshToken == "" {
		return nil, authkit.NewError(authkit.KindAuthExpired, "missing refresh token")
	}

	email := "refreshed"
	if b.current != nil {
		email = b.current.user.Email
	}
	return &authkit.Credentials{
		AccessToken:  b.issue(email, b.tokenTTL),
		RefreshToken: b.issue(email, 30*24*time.Hour),
	}, nil
}

// SeedSession marks email's account as the current session, as if a
// login had happened in a previous process. Panics on unknown email.
func (b *Backend) SeedSession(email string) authkit.Credentials {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[email]
	if !ok {
		panic(fmt.Sprintf("fake: unknown account %q", email))
	}
	b.current = &acct
	return authkit.Credentials{
		AccessToken:  b.issue(email, b.tokenTTL),
		RefreshToken: b.issue(email, 30*24*time.Hour),
	}
}
