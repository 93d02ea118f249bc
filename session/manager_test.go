package session

import (
	"context"
	"errors"
	"testing"
	"time"

	authkit "github.com/darasa/authkit-go"
	"github.com/darasa/authkit-go/fake"
	"github.com/darasa/authkit-go/store"
)

func seededBackend(opts ...fake.Option) *fake.Backend {
	base := []fake.Option{
		fake.WithAccount("jane@greenfield.sc", "s3cret",
			authkit.User{ID: "u1", Email: "jane@greenfield.sc", FirstName: "Jane", LastName: "Doe", Role: "ADMIN"},
			authkit.School{ID: "s1", Name: "Greenfield Academy", Slug: "Greenfield"},
		),
	}
	return fake.New(append(base, opts...)...)
}

func newManager(t *testing.T, b *fake.Backend) (*Manager, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	m, err := NewManager(b, st)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, st
}

func TestLoginSuccess(t *testing.T) {
	b := seededBackend()
	m, st := newManager(t, b)
	ctx := context.Background()

	// Storage must be readable the instant in-memory state flips:
	// a synchronous subscriber must never observe "authenticated in
	// memory, nothing stored".
	var observedStoredToken string
	unsub := m.Subscribe(func(snap Snapshot) {
		if snap.IsAuthenticated {
			rec, err := st.Load(ctx)
			if err != nil {
				t.Errorf("authenticated observed with empty storage: %v", err)
				return
			}
			observedStoredToken = rec.AccessToken
		}
	})
	defer unsub()

	// Slug is trimmed and lowercased before anything else.
	if err := m.Login(ctx, "jane@greenfield.sc", "s3cret", "  GREENFIELD "); err != nil {
		t.Fatalf("Login: %v", err)
	}

	snap := m.Snapshot()
	if snap.State != Authenticated || !snap.IsAuthenticated {
		t.Errorf("state = %v", snap.State)
	}
	if snap.IsLoading {
		t.Error("IsLoading should be false after login resolves")
	}
	if snap.User == nil || snap.User.Role != authkit.RoleAdmin {
		t.Errorf("user = %+v", snap.User)
	}
	if snap.School == nil || snap.School.Slug != "greenfield" {
		t.Errorf("school = %+v", snap.School)
	}

	rec, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if rec.AccessToken == "" || rec.RefreshToken == "" {
		t.Error("credentials not persisted")
	}
	if observedStoredToken == "" {
		t.Error("subscriber never observed an authenticated snapshot")
	}
}

func TestLoginBadPassword(t *testing.T) {
	m, st := newManager(t, seededBackend())
	ctx := context.Background()

	err := m.Login(ctx, "jane@greenfield.sc", "wrong", "greenfield")
	if err == nil {
		t.Fatal("expected error")
	}
	if !authkit.IsKind(err, authkit.KindAuthInvalid) {
		t.Errorf("kind = %v, want KindAuthInvalid", authkit.KindOf(err))
	}
	// The backend's message reaches the caller unchanged.
	var ae *authkit.Error
	if !errors.As(err, &ae) || ae.Message != "Invalid credentials" {
		t.Errorf("message = %v", err)
	}

	snap := m.Snapshot()
	if snap.IsAuthenticated || snap.IsLoading {
		t.Errorf("snapshot after failed login: %+v", snap)
	}
	if _, err := st.Load(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Error("failed login left partial storage behind")
	}
}

func TestLogoutUnconditional(t *testing.T) {
	b := seededBackend()
	m, st := newManager(t, b)
	ctx := context.Background()

	if err := m.Login(ctx, "jane@greenfield.sc", "s3cret", "greenfield"); err != nil {
		t.Fatal(err)
	}

	// Remote logout fails; local clearing must happen anyway.
	b.LogoutErr = authkit.WrapError(authkit.KindNetwork, errors.New("connection refused"))
	m.Logout(ctx)

	snap := m.Snapshot()
	if snap.IsAuthenticated || snap.User != nil {
		t.Errorf("session survived logout: %+v", snap)
	}
	if _, err := st.Load(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Error("persisted storage not cleared")
	}
	if b.LogoutCalls != 1 {
		t.Errorf("remote logout calls = %d, want 1", b.LogoutCalls)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	b := seededBackend()
	m, _ := newManager(t, b)
	ctx := context.Background()

	if err := m.Login(ctx, "jane@greenfield.sc", "s3cret", "greenfield"); err != nil {
		t.Fatal(err)
	}

	m.Logout(ctx)
	first := m.Snapshot()
	m.Logout(ctx)
	second := m.Snapshot()

	if first != second {
		t.Errorf("second logout changed state: %+v vs %+v", first, second)
	}
	if b.LogoutCalls != 1 {
		t.Errorf("second logout hit the backend: %d calls", b.LogoutCalls)
	}
}

func TestRolePredicatesNormalizeCasing(t *testing.T) {
	m, _ := newManager(t, seededBackend())
	ctx := context.Background()

	// Seeded role was "ADMIN"; stored and compared as "admin".
	if err := m.Login(ctx, "jane@greenfield.sc", "s3cret", "greenfield"); err != nil {
		t.Fatal(err)
	}
	if !m.IsAdmin() {
		t.Error("IsAdmin() should be true for role seeded as ADMIN")
	}
	if m.IsTeacher() || m.IsBursar() {
		t.Error("unrelated predicates should be false")
	}
	if got := m.User().Role; got != authkit.RoleAdmin {
		t.Errorf("stored role = %q, want %q", got, authkit.RoleAdmin)
	}
}

func TestCheckAuthColdStartValid(t *testing.T) {
	b := seededBackend()
	m, st := newManager(t, b)
	ctx := context.Background()

	creds := b.SeedSession("jane@greenfield.sc")
	mustSave(t, st, &store.Record{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         &authkit.User{ID: "u1", Role: authkit.RoleAdmin},
		School:       &authkit.School{ID: "s1", Slug: "greenfield"},
	})

	var states []State
	unsub := m.Subscribe(func(snap Snapshot) { states = append(states, snap.State) })
	defer unsub()

	if !m.CheckAuth(ctx) {
		t.Fatal("CheckAuth = false, want true")
	}

	snap := m.Snapshot()
	if snap.State != Authenticated || snap.User == nil || snap.User.Role != authkit.RoleAdmin {
		t.Errorf("snapshot after restore: %+v", snap)
	}
	if !containsState(states, Restoring) {
		t.Errorf("never observed Restoring: %v", states)
	}
	if b.MeCalls != 1 {
		t.Errorf("Me calls = %d, want 1", b.MeCalls)
	}
}

func TestCheckAuthNoStoredCredential(t *testing.T) {
	b := seededBackend()
	m, _ := newManager(t, b)

	if m.CheckAuth(context.Background()) {
		t.Error("CheckAuth with empty storage should be false")
	}
	if m.Snapshot().State != Unauthenticated {
		t.Error("state should settle at Unauthenticated")
	}
	if b.MeCalls != 0 {
		t.Error("no verification call should be made without a credential")
	}
}

func TestCheckAuthVerificationFails(t *testing.T) {
	b := seededBackend()
	m, st := newManager(t, b)
	ctx := context.Background()

	creds := b.SeedSession("jane@greenfield.sc")
	mustSave(t, st, &store.Record{AccessToken: creds.AccessToken, RefreshToken: creds.RefreshToken})

	b.MeErr = authkit.NewError(authkit.KindAuthExpired, "token expired")

	if m.CheckAuth(ctx) {
		t.Fatal("CheckAuth should be false when verification fails")
	}
	if m.Snapshot().State != Unauthenticated {
		t.Error("state should be Unauthenticated")
	}
	if _, err := st.Load(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Error("persisted storage should be cleared")
	}
}

func TestCheckAuthSkipsDoomedRoundTrip(t *testing.T) {
	b := seededBackend(fake.WithTokenTTL(-time.Hour))
	m, st := newManager(t, b)
	ctx := context.Background()

	// Expired access credential and no refresh credential: the
	// verification call cannot succeed, so it is skipped.
	creds := b.SeedSession("jane@greenfield.sc")
	mustSave(t, st, &store.Record{AccessToken: creds.AccessToken})

	if m.CheckAuth(ctx) {
		t.Fatal("CheckAuth should be false")
	}
	if b.MeCalls != 0 {
		t.Errorf("Me calls = %d, want 0", b.MeCalls)
	}
	if _, err := st.Load(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Error("persisted storage should be cleared")
	}
}

func TestUpdateUser(t *testing.T) {
	m, st := newManager(t, seededBackend())
	ctx := context.Background()

	if err := m.Login(ctx, "jane@greenfield.sc", "s3cret", "greenfield"); err != nil {
		t.Fatal(err)
	}

	avatar := "https://cdn/avatar.png"
	first := "Janet"
	m.UpdateUser(ctx, authkit.UserPatch{FirstName: &first, Avatar: &avatar})

	u := m.User()
	if u.FirstName != "Janet" || u.Avatar != avatar {
		t.Errorf("user not updated: %+v", u)
	}
	if u.LastName != "Doe" {
		t.Error("unpatched field changed")
	}

	rec, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.User.FirstName != "Janet" {
		t.Error("update not re-persisted")
	}
	if m.FullName() != "Janet Doe" {
		t.Errorf("FullName = %q", m.FullName())
	}
}

func TestUpdateUserNoSession(t *testing.T) {
	m, st := newManager(t, seededBackend())
	ctx := context.Background()

	name := "Ghost"
	m.UpdateUser(ctx, authkit.UserPatch{FirstName: &name})

	if m.User() != nil {
		t.Error("UpdateUser created a user out of nothing")
	}
	if _, err := st.Load(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Error("UpdateUser wrote storage without a session")
	}
}

func TestRedirectAfterLogin(t *testing.T) {
	m, _ := newManager(t, seededBackend())
	ctx := context.Background()

	if _, ok := m.RedirectAfterLogin("/login"); ok {
		t.Error("no redirect should be proposed while unauthenticated")
	}

	if err := m.Login(ctx, "jane@greenfield.sc", "s3cret", "greenfield"); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"/login", "/greenfield/admin/dashboard", true},
		{"/login?reason=session_expired", "/greenfield/admin/dashboard", true},
		{"/", "/greenfield/admin/dashboard", true},
		{"", "/greenfield/admin/dashboard", true},
		// Established in-app navigation is never hijacked.
		{"/greenfield/admin/students", "", false},
		{"/greenfield/fees", "", false},
	}
	for _, c := range cases {
		got, ok := m.RedirectAfterLogin(c.path)
		if ok != c.ok || got != c.want {
			t.Errorf("RedirectAfterLogin(%q) = %q,%v want %q,%v", c.path, got, ok, c.want, c.ok)
		}
	}
}

func mustSave(t *testing.T, st store.Store, rec *store.Record) {
	t.Helper()
	if err := st.Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
}

func containsState(states []State, s State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}
