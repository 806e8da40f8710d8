// Package memory provides an in-memory implementation of store.Store for
// tests and throwaway deployments. Documents are lost when the process
// restarts.
package memory

import (
	"context"
	"sync"

	"github.com/a2bot/relay/pkg/store"
)

// Store is an in-memory document store.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Load returns a copy of the document stored under key, or store.ErrNotFound.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

// Save stores a private copy of the document under key.
func (s *Store) Save(ctx context.Context, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(doc))
	copy(cp, doc)
	s.docs[key] = cp
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Len reports the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
