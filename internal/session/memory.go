package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. A session expires after ttl
// without a Save; a zero ttl keeps sessions until Delete.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[uuid.UUID]memoryItem
	locks    keyedMutex
}

type memoryItem struct {
	session Session
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]memoryItem),
	}
}

func (m *MemoryStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = memoryItem{session: s.clone(), expires: m.expiry()}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.live(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return item.session.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(s.ID); !ok {
		return ErrSessionNotFound
	}
	m.sessions[s.ID] = memoryItem{session: s.clone(), expires: m.expiry()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(id); !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.sessions)
}

// live returns the item for id, dropping it if it has expired. Callers hold mu.
func (m *MemoryStore) live(id uuid.UUID) (memoryItem, bool) {
	item, ok := m.sessions[id]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		delete(m.sessions, id)
		return memoryItem{}, false
	}
	return item, true
}

func (m *MemoryStore) sweep() {
	for id := range m.sessions {
		m.live(id)
	}
}

func (m *MemoryStore) expiry() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

// Lock serializes callers on id. Controllers sharing this store share its locks.
func (m *MemoryStore) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	return m.locks.lock(ctx, id)
}
