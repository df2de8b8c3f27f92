// Package storage provides the document store used to persist the
// aggregate stats document. The store is a plain key to JSON-blob
// mapping with whole-document reads and writes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when no document exists under the key.
var ErrNotFound = errors.New("storage: document not found")

// DocumentStore is the persistence boundary for aggregate documents.
// Implementations provide no transactional guarantees across concurrent
// writers; a Put overwrites the whole document (last writer wins).
type DocumentStore interface {
	// Get returns the raw JSON document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Put stores the raw JSON document under key, replacing any previous value.
	Put(ctx context.Context, key string, doc json.RawMessage) error
	// Close releases any underlying resources.
	Close() error
}
