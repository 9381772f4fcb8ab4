package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/fcostin/logsumexp-approx/codegen"
	"github.com/fcostin/logsumexp-approx/jit"
)

// Session is one compiled batch held on behalf of an API client. The
// session owns the armed handle; destroying the session releases the
// executable region.
type Session struct {
	ID        string
	CreatedAt time.Time
	Batch     []codegen.Range
	Func      *jit.Func
}

// SessionManager tracks live sessions
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	nextID   int
}

// NewSessionManager creates an empty session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Create compiles a batch and registers the handle under a fresh session ID
func (m *SessionManager) Create(batch []codegen.Range) (*Session, error) {
	fn, err := jit.Compile(batch)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	session := &Session{
		ID:        fmt.Sprintf("lse-%d", m.nextID),
		CreatedAt: time.Now(),
		Batch:     fn.Ranges(),
		Func:      fn,
	}
	m.sessions[session.ID] = session
	return session, nil
}

// Get looks up a session by ID
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns the IDs of all live sessions
func (m *SessionManager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Destroy releases a session's compiled handle and forgets it
func (m *SessionManager) Destroy(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	return session.Func.Close()
}

// Close releases every live session
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Func.Close()
	}
}
