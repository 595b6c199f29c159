package directory

import (
	"sync"

	"github.com/NicolasHaas/staffchat/pkg/model"
)

// MemoryStore provides an in-memory UserStore for tests. It mirrors the
// snapshot semantics of the file and SQLite stores.
type MemoryStore struct {
	mu    sync.Mutex
	users []model.UserRecord
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LoadAll() ([]model.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.UserRecord, len(m.users))
	copy(out, m.users)
	return out, nil
}

func (m *MemoryStore) SaveAll(users []model.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make([]model.UserRecord, len(users))
	copy(m.users, users)
	m.saves++
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Saves returns how many times SaveAll has run.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
