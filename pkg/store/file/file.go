// Package file provides a filesystem implementation of store.Store.
// Documents live at <dir>/<key>.json, matching the layout the relay's
// data directory has always used (session histories at the root, user
// settings under users/). Directories are created lazily on first save.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/a2bot/relay/pkg/store"
)

// Store is a filesystem-backed document store rooted at a single directory.
type Store struct {
	dir string
}

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// New creates a file store rooted at dir. The directory itself is not
// created until the first save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads the document stored under key. Returns store.ErrNotFound if
// no such document exists.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Save writes the document under key, creating containing directories
// as needed.
func (s *Store) Save(ctx context.Context, key string, doc []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Close is a no-op; the store holds no open resources.
func (s *Store) Close() error {
	return nil
}

// path maps a key to its on-disk location, rejecting keys that would
// resolve outside the store root.
func (s *Store) path(key string) (string, error) {
	if key == "" {
		return "", store.ErrInvalidKey
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || filepath.IsAbs(clean) ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", store.ErrInvalidKey
	}
	return filepath.Join(s.dir, clean+".json"), nil
}
