package state

import (
	"sync"
)

type userLock struct {
	mu   sync.Mutex
	refs int
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// NewMemoryStore constructs an in-memory Store. Sessions are lost on restart.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]Session),
		locks:    make(map[int64]*userLock),
	}
}

// Get returns a copy of the user's session if one exists.
func (m *memoryStore) Get(userID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Set replaces the user's session.
func (m *memoryStore) Set(userID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s.clone()
}

// Clear removes the user's session. Clearing a missing session is a no-op.
func (m *memoryStore) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len returns the number of active sessions.
func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Lock blocks until the caller holds the user's lock and returns its release func.
// Lock entries are dropped once no goroutine holds or waits for them.
func (m *memoryStore) Lock(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(m.locks, userID)
			}
			m.locksMu.Unlock()
		})
	}
}
