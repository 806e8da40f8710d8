// Package store defines the document store behind session history and user
// settings: raw JSON documents keyed by slash-separated string identifiers.
// Backends (file, memory, postgres) implement the Store interface; decoding
// and corruption handling live in pkg/session, not here.
package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no document exists under a key.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidKey is returned for keys a backend cannot represent,
	// such as paths escaping the file store's root.
	ErrInvalidKey = errors.New("invalid document key")
)

// Store persists raw JSON documents. Save overwrites any existing document
// and creates containing namespaces lazily; Load returns ErrNotFound for
// absent keys. Implementations are safe for concurrent use.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, doc []byte) error
	Close() error
}
