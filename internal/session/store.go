package session

import (
	"context"
	"sync"

	"FallWatch.iot/internal/models"

	"github.com/benbjohnson/clock"
)

// Store is a time-bounded session table. Expired sessions are dropped lazily
// when read.
type Store interface {
	Put(ctx context.Context, s models.Session) error
	Get(ctx context.Context, token string) (models.Session, bool, error)
	Delete(ctx context.Context, token string) error
	List(ctx context.Context) ([]models.Session, error)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	sessions map[string]models.Session
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clk,
		sessions: make(map[string]models.Session),
	}
}

func (m *MemoryStore) Put(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return models.Session{}, false, nil
	}
	if s.Expired(m.clock.Now()) {
		delete(m.sessions, token)
		return models.Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	out := make([]models.Session, 0, len(m.sessions))
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
