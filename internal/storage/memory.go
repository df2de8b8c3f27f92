package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemoryStore is a map-backed document store. It is the default in the
// test environment and useful for ephemeral deployments.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage

	// FailGets and FailPuts force the next operations to fail; tests use
	// them to exercise storage fault propagation.
	FailGets error
	FailPuts error
}

// NewInMemoryStore creates an empty in-memory document store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]json.RawMessage)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailGets != nil {
		return nil, s.FailGets
	}
	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out, nil
}

func (s *InMemoryStore) Put(_ context.Context, key string, body json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPuts != nil {
		return s.FailPuts
	}
	stored := make(json.RawMessage, len(body))
	copy(stored, body)
	s.docs[key] = stored
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
