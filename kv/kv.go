// Package kv provides the durable key-value substrate the snapshot is
// written to. Every backend stores opaque byte values under string keys
// with last-write-wins semantics.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for keys that were never set or were removed
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable string-keyed byte store
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases the backend's resources.
	Close() error
}

// Backend names a Store implementation
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendBadger Backend = "badger"
	BackendSQLite Backend = "sqlite"
)

// Backends lists every supported backend
var Backends = []Backend{BackendMemory, BackendFile, BackendBadger, BackendSQLite}

// ParseBackend matches a backend name case-insensitively
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown kv backend %q", name)
}

// Open creates the named backend. path is a directory for file and badger,
// a database file for sqlite, and ignored for memory.
func Open(ctx context.Context, backend Backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(path)
	case BackendBadger:
		return NewBadgerStore(path)
	case BackendSQLite:
		return NewSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unknown kv backend %q", backend)
	}
}
