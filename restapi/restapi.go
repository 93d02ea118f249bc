// Package restapi implements the authkit.Backend contract against the
// school management REST API.
//
// All calls share the SDK's transport client, so requests made here
// pass through the same bearer and refresh middleware as the data
// calls pages make — except login and refresh themselves, which are
// marked SkipAuth so the refresh protocol can never recurse into
// them.
package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	authkit "github.com/darasa/authkit-go"
	"github.com/darasa/authkit-go/transport"
)

// Client calls the /auth endpoints.
type Client struct {
	t *transport.Client
}

// New creates a backend adapter over the given transport client.
func New(t *transport.Client) *Client {
	return &Client{t: t}
}

// compile-time check
var _ authkit.Backend = (*Client)(nil)

// envelope is the backend's {success, data, error} response shape.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) errMessage() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

type authPayload struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         *authkit.User   `json:"user"`
	School       *authkit.School `json:"school"`
}

// Login verifies credentials. A backend rejection — whether a
// success:false envelope or a 401 — surfaces as KindAuthInvalid with
// the backend's message verbatim.
func (c *Client) Login(ctx context.Context, email, password, slug string) (*authkit.LoginResult, error) {
	req := &transport.Request{
		Method:   http.MethodPost,
		Path:     "/auth/login",
		Body:     map[string]string{"email": email, "password": password, "slug": slug},
		SkipAuth: true,
	}

	resp, err := c.t.Do(ctx, req)
	if err != nil {
		// On a login call a 401 is a rejected credential, not an
		// expired session.
		var ae *authkit.Error
		if errors.As(err, &ae) && ae.Kind == authkit.KindAuthExpired {
			return nil, &authkit.Error{Kind: authkit.KindAuthInvalid, Message: ae.Message, Status: ae.Status}
		}
		return nil, err
	}

	var env envelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, authkit.NewError(authkit.KindAuthInvalid, env.errMessage())
	}

	var p authPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, authkit.WrapError(authkit.KindServer, err)
	}
	if p.AccessToken == "" || p.User == nil || p.School == nil {
		return nil, authkit.NewError(authkit.KindServer, "login response missing credentials or identity")
	}

	return &authkit.LoginResult{
		Credentials: authkit.Credentials{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken},
		User:        *p.User,
		School:      *p.School,
	}, nil
}

// Logout invalidates the session remotely. The response body is
// ignored.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.t.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
	})
	return err
}

// Me verifies the current credential and returns its identity and
// tenant.
func (c *Client) Me(ctx context.Context) (*authkit.MeResult, error) {
	resp, err := c.t.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/auth/me",
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, authkit.NewError(authkit.KindServer, env.errMessage())
	}

	var p authPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, authkit.WrapError(authkit.KindServer, err)
	}
	if p.User == nil || p.School == nil {
		return nil, authkit.NewError(authkit.KindServer, "me response missing identity")
	}
	return &authkit.MeResult{User: *p.User, School: *p.School}, nil
}

// refreshPayload tolerates both enveloped and flat refresh responses.
type refreshPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh credential for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authkit.Credentials, error) {
	resp, err := c.t.Do(ctx, &transport.Request{
		Method:   http.MethodPost,
		Path:     "/auth/refresh",
		Body:     map[string]string{"refreshToken": refreshToken},
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}

	var p refreshPayload
	var env envelope
	if err := resp.Decode(&env); err == nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, authkit.WrapError(authkit.KindServer, err)
		}
	} else if err := resp.Decode(&p); err != nil {
		return nil, err
	}

	if p.AccessToken == "" {
		return nil, authkit.NewError(authkit.KindServer, "refresh response missing access token")
	}
	return &authkit.Credentials{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}, nil
}
