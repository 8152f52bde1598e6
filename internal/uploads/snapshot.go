package uploads

import (
	"context"
	"sync"
)

// SnapshotStore is the key-value persistence collaborator for upload
// sessions: written on every mutation, read back at startup, and
// pruned once snapshots go stale.
type SnapshotStore interface {
	Save(ctx context.Context, sess Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Session, error)
}

// MemoryStore keeps snapshots in process memory. Suitable for tests
// and single-instance development setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Save(ctx context.Context, sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out, nil
}
