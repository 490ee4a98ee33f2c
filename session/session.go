// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/chessrelay/network"
)

// Session is one live client connection. It exists only for the lifetime of
// the underlying transport; game state lives in the game package.
type Session struct {
	ID         string
	Conn       network.Connection
	GameKey    string
	CreatedAt  time.Time
	LastActive time.Time
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(payload interface{}) error {
	s.LastActive = time.Now()
	return s.Conn.Send(payload)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager tracks every connected session, independent of which game (if
// any) each one has joined.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll force-closes every connection. Used during shutdown; the read
// loops observe the close and run their normal departure path.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, s := range m.sessions {
		_ = s.Conn.Close()
	}
}
