package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists the record as a JSON file. Writes go through a temp
// file and rename so a crash mid-write never leaves a torn record.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file-backed store at path. The parent directory
// must exist.
func NewFile(path string) *File {
	return &File{path: path}
}

// compile-time check
var _ Store = (*File)(nil)

// Load reads and decodes the record file.
func (f *File) Load(context.Context) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt record: treat as absent, next Save overwrites it.
		return nil, ErrNotFound
	}
	if rec.Version != SchemaVersion {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Save atomically replaces the record file.
func (f *File) Save(_ context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *rec
	cp.Version = SchemaVersion
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}

// Clear removes the record file if present.
func (f *File) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %s: %w", f.path, err)
	}
	return nil
}

// DefaultPath returns a per-user record path under the OS config
// directory, creating the parent directory as needed.
func DefaultPath(app string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("store: user config dir: %w", err)
	}
	full := filepath.Join(dir, app)
	if err := os.MkdirAll(full, 0o700); err != nil {
		return "", fmt.Errorf("store: mkdir %s: %w", full, err)
	}
	return filepath.Join(full, "session.json"), nil
}
