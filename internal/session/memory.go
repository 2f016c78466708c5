package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. The default when no Redis
// address is configured; state is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

// Get returns the chat's session, or a fresh one for an unknown chat.
func (m *MemoryStore) Get(_ context.Context, chatID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return New(), nil
	}

	copied := *s
	copied.Stack = append([]State(nil), s.Stack...)
	copied.Universities = append([]UniversityRef(nil), s.Universities...)
	copied.Categories = append([]string(nil), s.Categories...)
	copied.Practices = append([]PracticeRef(nil), s.Practices...)
	return &copied, nil
}

// Put stores the chat's session.
func (m *MemoryStore) Put(_ context.Context, chatID int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *s
	copied.Stack = append([]State(nil), s.Stack...)
	copied.Universities = append([]UniversityRef(nil), s.Universities...)
	copied.Categories = append([]string(nil), s.Categories...)
	copied.Practices = append([]PracticeRef(nil), s.Practices...)
	m.sessions[chatID] = &copied
	return nil
}
