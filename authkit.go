// Package authkit provides session and authentication-state management
// for multi-tenant school management frontends and BFFs.
//
// The package defines the data model (User, School, Role, Credentials),
// a closed error taxonomy, and the Backend contract implemented by
// remote-API adapters. The session state machine itself lives in the
// session subpackage; persisted-record storage in store; route and
// tenant gating in guard.
//
// Example usage:
//
//	st := store.NewFile(path)
//	tp := transport.New("https://api.example.com")
//	mgr, err := session.NewManager(restapi.New(tp), st)
//	if err != nil { ... }
//	defer mgr.Close()
//	mgr.Attach(tp)
//
//	if mgr.CheckAuth(ctx) {
//	    fmt.Println("welcome back,", mgr.Snapshot().User.FullName())
//	}
package authkit

import "context"

// Backend is the remote authentication API contract. Implementations:
// restapi/ (REST), fake/ (testing).
//
// Logout and Me operate on the current session; the access credential
// is attached by the transport layer, not passed explicitly.
type Backend interface {
	// Login verifies credentials against the backend. A rejected login
	// returns an *Error of KindAuthInvalid carrying the backend's
	// message verbatim.
	Login(ctx context.Context, email, password, slug string) (*LoginResult, error)

	// Logout invalidates the session remotely. Best-effort; callers
	// must not let a failure block local clearing.
	Logout(ctx context.Context) error

	// Me verifies the current access credential and returns the
	// identity and tenant it belongs to.
	Me(ctx context.Context) (*MeResult, error)

	// Refresh exchanges a refresh credential for a new pair. The
	// returned RefreshToken may be empty when the backend does not
	// rotate it.
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Credentials Credentials
	User        User
	School      School
}

// MeResult is the payload of a successful identity verification.
type MeResult struct {
	User   User
	School School
}
