package restapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authkit "github.com/darasa/authkit-go"
	"github.com/darasa/authkit-go/transport"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(transport.New(ts.URL))
}

func TestLoginSuccess(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not carry a bearer credential")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"accessToken": "at-1",
				"refreshToken": "rt-1",
				"user": {"id": "u1", "email": "a@b.sc", "firstName": "Amina", "lastName": "Bello", "role": "Bursar"},
				"school": {"id": "s1", "name": "Greenfield", "slug": "Greenfield"}
			}
		}`))
	})

	res, err := c.Login(context.Background(), "a@b.sc", "pw", "greenfield")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Credentials.AccessToken != "at-1" || res.Credentials.RefreshToken != "rt-1" {
		t.Errorf("credentials = %+v", res.Credentials)
	}
	// Role and slug arrive normalized regardless of backend casing.
	if res.User.Role != authkit.RoleBursar {
		t.Errorf("role = %q", res.User.Role)
	}
	if res.School.Slug != "greenfield" {
		t.Errorf("slug = %q", res.School.Slug)
	}
}

func TestLoginRejectedEnvelope(t *testing.T) {
	// Some backends reject with 200 + success:false.
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error": "Invalid email or password"}`))
	})

	_, err := c.Login(context.Background(), "a@b.sc", "bad", "greenfield")
	if !authkit.IsKind(err, authkit.KindAuthInvalid) {
		t.Fatalf("kind = %v, want KindAuthInvalid", authkit.KindOf(err))
	}
	var ae *authkit.Error
	if !errors.As(err, &ae) || ae.Message != "Invalid email or password" {
		t.Errorf("backend message not preserved: %v", err)
	}
}

func TestLoginRejected401(t *testing.T) {
	// A 401 on login is a rejected credential, never an expired
	// session: it must not classify as KindAuthExpired, which would
	// invite a refresh attempt with no session.
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "error": "Invalid credentials"}`))
	})

	_, err := c.Login(context.Background(), "a@b.sc", "bad", "greenfield")
	if !authkit.IsKind(err, authkit.KindAuthInvalid) {
		t.Errorf("kind = %v, want KindAuthInvalid", authkit.KindOf(err))
	}
	if authkit.IsKind(err, authkit.KindAuthExpired) {
		t.Error("login 401 classified as expired session")
	}
}

func TestLoginMalformedPayload(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"accessToken": ""}}`))
	})

	_, err := c.Login(context.Background(), "a@b.sc", "pw", "greenfield")
	if !authkit.IsKind(err, authkit.KindServer) {
		t.Errorf("kind = %v, want KindServer", authkit.KindOf(err))
	}
}

func TestMe(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" || r.Method != http.MethodGet {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{
			"success": true,
			"data": {
				"user": {"id": "u1", "email": "a@b.sc", "role": "ADMIN"},
				"school": {"id": "s1", "slug": "greenfield"}
			}
		}`))
	})

	res, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if res.User.Role != authkit.RoleAdmin || res.School.Slug != "greenfield" {
		t.Errorf("result = %+v", res)
	}
}

func TestMeExpired(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "error": "Token expired"}`))
	})

	_, err := c.Me(context.Background())
	if !authkit.IsKind(err, authkit.KindAuthExpired) {
		t.Errorf("kind = %v, want KindAuthExpired", authkit.KindOf(err))
	}
}

func TestRefreshEnveloped(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/refresh" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "data": {"accessToken": "at-2", "refreshToken": "rt-2"}}`))
	})

	creds, err := c.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if creds.AccessToken != "at-2" || creds.RefreshToken != "rt-2" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestRefreshFlat(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accessToken": "at-2", "refreshToken": "rt-2"}`))
	})

	creds, err := c.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if creds.AccessToken != "at-2" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestLogoutIgnoresBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/logout" || r.Method != http.MethodPost {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`not even json`))
	})

	if err := c.Logout(context.Background()); err != nil {
		t.Errorf("Logout: %v", err)
	}
}
