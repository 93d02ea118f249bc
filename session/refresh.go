package session

import (
	"context"
	"errors"
	"fmt"

	authkit "github.com/darasa/authkit-go"
	"github.com/darasa/authkit-go/audit"
	"github.com/darasa/authkit-go/store"
	"github.com/darasa/authkit-go/transport"
)

// bearerMiddleware attaches the current access credential to every
// outbound request. A context override (transport.ContextWithToken)
// wins over the in-memory credential.
func (m *Manager) bearerMiddleware() transport.Middleware {
	return transport.MiddlewareFunc(func(ctx context.Context, req *transport.Request, next transport.Next) (*transport.Response, error) {
		if req.SkipAuth {
			return next(ctx, req)
		}
		token := transport.TokenFromContext(ctx)
		if token == "" {
			token = m.accessToken()
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return next(ctx, req)
	})
}

// refreshMiddleware implements the one-shot refresh protocol: when a
// request comes back with an expired credential and has not been
// replayed yet, refresh the pair once and replay the request once.
// Each request carries its own marker, so unrelated concurrent
// requests proceed independently while concurrent expirations share a
// single refresh call.
func (m *Manager) refreshMiddleware() transport.Middleware {
	return transport.MiddlewareFunc(func(ctx context.Context, req *transport.Request, next transport.Next) (*transport.Response, error) {
		resp, err := next(ctx, req)
		if err == nil || req.SkipAuth || !authkit.IsKind(err, authkit.KindAuthExpired) {
			return resp, err
		}
		if req.Retried {
			// Second expiry on the replayed request: propagate, never
			// loop.
			return nil, err
		}

		token, rerr := m.refreshCredentials(ctx)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrForcedLogout, rerr)
		}

		req.Retried = true
		req.Header.Set("Authorization", "Bearer "+token)
		return next(ctx, req)
	})
}

// refreshCredentials performs the refresh exchange, persisting the new
// pair before the in-memory swap. Concurrent callers coalesce into a
// single backend call via singleflight. Failure destroys the session.
func (m *Manager) refreshCredentials(ctx context.Context) (string, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		refreshTok := m.refreshToken()
		if refreshTok == "" {
			return nil, errors.New("no refresh credential")
		}

		m.mu.Lock()
		if m.state == Authenticated {
			m.state = Refreshing
		}
		m.mu.Unlock()
		m.notify()
		m.metrics.RecordRefresh()

		creds, err := m.backend.Refresh(ctx, refreshTok)
		if err != nil {
			return nil, err
		}
		if creds.RefreshToken == "" {
			// Backend kept the old refresh credential.
			creds.RefreshToken = refreshTok
		}

		m.mu.RLock()
		user, school := m.user, m.school
		m.mu.RUnlock()

		rec := &store.Record{
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
			User:         user,
			School:       school,
		}
		if err := m.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist refreshed credentials: %w", err)
		}

		m.mu.Lock()
		m.creds = *creds
		if m.state == Refreshing {
			m.state = Authenticated
		}
		m.mu.Unlock()
		m.notify()

		return creds.AccessToken, nil
	})
	if err != nil {
		// A failed refresh wins over any in-flight UI state: the
		// session is gone regardless of pending requests.
		m.metrics.RecordRefreshFailure()
		m.metrics.RecordForcedLogout()
		m.auditEvent(audit.Event{Action: audit.ActionRefreshFailed, Result: "failure", Error: err.Error()})
		m.logger.Warn("credential refresh failed, destroying session", "error", err)
		m.clearLocal(ctx)
		return "", err
	}
	return v.(string), nil
}
