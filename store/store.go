// Package store persists the session record so a restart can attempt
// a silent restore before any network round-trip.
//
// The session manager is the record's only writer; everything else
// holds a read-only view obtained through the manager. Records carry
// a schema version — a record written by an unknown schema is treated
// as absent rather than half-decoded.
package store

import (
	"context"
	"fmt"
	"sync"

	authkit "github.com/darasa/authkit-go"
)

// SchemaVersion is the current persisted-record layout version.
const SchemaVersion = 1

// Record is the durable mirror of a session: credential strings plus
// the serialized identity and tenant.
type Record struct {
	Version      int             `json:"version"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         *authkit.User   `json:"user,omitempty"`
	School       *authkit.School `json:"school,omitempty"`
}

// Empty reports whether the record holds no access credential.
func (r *Record) Empty() bool {
	return r == nil || r.AccessToken == ""
}

// ErrNotFound is returned by Load when no record is persisted.
var ErrNotFound = fmt.Errorf("store: record not found")

// Store is the persisted-session backend. Implementations: Memory,
// File, redisstore.Store.
type Store interface {
	// Load returns the persisted record, or ErrNotFound.
	Load(ctx context.Context) (*Record, error)

	// Save writes the record, replacing any existing one. The write
	// must be complete before Save returns: the session manager
	// relies on storage happening-before its in-memory state flip.
	Save(ctx context.Context, rec *Record) error

	// Clear removes the record. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}

// Memory is an in-process Store for tests and short-lived CLIs.
type Memory struct {
	mu  sync.RWMutex
	rec *Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// compile-time check
var _ Store = (*Memory)(nil)

// Load returns the stored record, or ErrNotFound.
func (m *Memory) Load(context.Context) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec == nil || m.rec.Version != SchemaVersion {
		return nil, ErrNotFound
	}
	cp := *m.rec
	return &cp, nil
}

// Save stores a copy of rec.
func (m *Memory) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Version = SchemaVersion
	m.rec = &cp
	return nil
}

// Clear removes the stored record.
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}
