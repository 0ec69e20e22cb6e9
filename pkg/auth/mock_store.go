package auth

import (
	"sync"
)

// MockStore is an in-memory SessionStore with error injection
type MockStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

// Store saves a copy of the session
func (m *MockStore) Store(session *Session) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil || session.Site == "" {
		return ErrInvalidSession
	}

	s := *session
	m.sessions[session.Site] = &s
	return nil
}

// Retrieve returns a copy of the session for a site
func (m *MockStore) Retrieve(site string) (*Session, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if site == "" {
		return nil, ErrInvalidSession
	}

	session, exists := m.sessions[site]
	if !exists {
		return nil, ErrSessionNotFound
	}
	s := *session
	return &s, nil
}

// List returns copies of all sessions
func (m *MockStore) List() ([]*Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		s := *session
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

// Delete removes the session for a site
func (m *MockStore) Delete(site string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if site == "" {
		return ErrInvalidSession
	}
	if _, exists := m.sessions[site]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, site)
	return nil
}

// Exists checks if a session exists for a site
func (m *MockStore) Exists(site string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.sessions[site]
	return exists
}

// Count returns the number of stored sessions
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// NewMockManager creates a Manager over a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
