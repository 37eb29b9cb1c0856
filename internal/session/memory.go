package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process nonce store used in tests and single-node
// development setups.
type MemoryStore struct {
	mu     sync.Mutex
	nonces map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nonces: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[sessionID], nil
}

func (s *MemoryStore) Set(ctx context.Context, sessionID, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[sessionID] = nonce
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nonces, sessionID)
	return nil
}
