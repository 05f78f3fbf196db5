package localstore

import (
	"sync"

	"lbm-go/internal/lbm"
)

// MemoryStore implements lbm.LocalStore in memory. Useful for tests and
// for running against a site without leaving state behind.
type MemoryStore struct {
	mu        sync.Mutex
	config    []byte
	reactions map[int64]string
	session   []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reactions: make(map[int64]string)}
}

func (m *MemoryStore) LoadConfigCache() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config, nil
}

func (m *MemoryStore) SaveConfigCache(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryStore) Reaction(postID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reactions[postID], nil
}

func (m *MemoryStore) SetReaction(postID int64, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions[postID] = action
	return nil
}

func (m *MemoryStore) ClearReaction(postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reactions, postID)
	return nil
}

func (m *MemoryStore) LoadSession() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *MemoryStore) SaveSession(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryStore) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Compile-time check that MemoryStore implements lbm.LocalStore
var _ lbm.LocalStore = (*MemoryStore)(nil)
