package store

import (
	"context"
	"sync"

	"zeb-assist-backend/internal/types"
)

// memoryStore keeps history in-process. Suitable for a single
// instance; use the redis driver when running more than one.
type memoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]types.Message
	maxMessages int
}

func newMemoryStore(maxMessages int) *memoryStore {
	return &memoryStore{
		sessions:    make(map[string][]types.Message),
		maxMessages: maxMessages,
	}
}

func (m *memoryStore) Append(ctx context.Context, sessionID string, msgs ...types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], msgs...)
	m.trimLocked(sessionID)
	return nil
}

func (m *memoryStore) History(ctx context.Context, sessionID string) ([]types.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sessions[sessionID]
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *memoryStore) trimLocked(sessionID string) {
	if m.maxMessages <= 0 {
		return
	}
	msgs := m.sessions[sessionID]
	if len(msgs) > m.maxMessages {
		m.sessions[sessionID] = msgs[len(msgs)-m.maxMessages:]
	}
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = nil
	return nil
}
