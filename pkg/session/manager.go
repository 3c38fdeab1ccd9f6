package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kredible/score-middleware/internal/metrics"
)

// Manager tracks the session store for each client session id.
type Manager struct {
	stash  Stash
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Store
}

// NewManager creates a Manager whose stores share one stash.
func NewManager(stash Stash, logger *zap.Logger) *Manager {
	return &Manager{
		stash:    stash,
		logger:   logger,
		sessions: make(map[string]*Store),
	}
}

// GetOrCreate returns the store for the session id, creating it on first use.
func (m *Manager) GetOrCreate(sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := NewStore(m.stash, m.logger)
	m.sessions[sessionID] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return s
}

// Get returns the store for the session id if one exists.
func (m *Manager) Get(sessionID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Remove drops the store for the session id.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}
