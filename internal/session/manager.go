// Package session tracks the live placement workspaces.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plan-placer/backend/internal/models"
	"github.com/plan-placer/backend/internal/workspace"
)

// MaxSessions limits concurrent workspaces to bound decoded plan memory.
const MaxSessions = 10

// SessionMaxAge is how long an idle workspace is kept before cleanup.
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow protects recently used workspaces from eviction.
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrNotFound        = errors.New("workspace not found")
	ErrTooManySessions = errors.New("too many active workspaces")
)

// Factory builds the workspace for a new session id.
type Factory func(id string) *workspace.Workspace

// Manager handles active workspaces.
type Manager struct {
	sessions    map[string]*sessionState
	mu          sync.RWMutex
	newWS       Factory
	maxSessions int
}

type sessionState struct {
	ws           *workspace.Workspace
	LastAccessed time.Time
}

// NewManager creates a session manager. maxSessions <= 0 uses MaxSessions.
func NewManager(factory Factory, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = MaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*sessionState),
		newWS:       factory,
		maxSessions: maxSessions,
	}
}

// Create starts a new workspace. At capacity the least recently used idle
// workspace is evicted; if every workspace is in use, Create fails.
func (m *Manager) Create() (*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions && !m.evictIdleLocked() {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, m.maxSessions)
	}

	id := uuid.New().String()
	ws := m.newWS(id)
	m.sessions[id] = &sessionState{ws: ws, LastAccessed: time.Now()}
	slog.Info("workspace created", "workspace", id[:8], "active", len(m.sessions))
	return ws, nil
}

// evictIdleLocked closes the least recently used workspace outside the
// keep-alive window.
func (m *Manager) evictIdleLocked() bool {
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	var oldestID string
	var oldest time.Time
	for id, state := range m.sessions {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if oldestID == "" || state.LastAccessed.Before(oldest) {
			oldestID, oldest = id, state.LastAccessed
		}
	}
	if oldestID == "" {
		return false
	}

	m.sessions[oldestID].ws.Close()
	delete(m.sessions, oldestID)
	slog.Info("evicted idle workspace", "workspace", oldestID[:8])
	return true
}

// Get returns a workspace and marks it as used.
func (m *Manager) Get(id string) (*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	state.LastAccessed = time.Now()
	return state.ws, nil
}

// TouchSession updates the LastAccessed timestamp for a workspace.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Info returns the summary of one workspace.
func (m *Manager) Info(id string) (models.WorkspaceInfo, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return models.WorkspaceInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	info := state.ws.Info()
	m.mu.RLock()
	info.LastAccessed = state.LastAccessed
	m.mu.RUnlock()
	return info, nil
}

// List returns all workspaces, most recently used first.
func (m *Manager) List() []models.WorkspaceInfo {
	m.mu.RLock()
	states := make([]*sessionState, 0, len(m.sessions))
	accessed := make(map[*sessionState]time.Time, len(m.sessions))
	for _, state := range m.sessions {
		states = append(states, state)
		accessed[state] = state.LastAccessed
	}
	m.mu.RUnlock()

	infos := make([]models.WorkspaceInfo, 0, len(states))
	for _, state := range states {
		info := state.ws.Info()
		info.LastAccessed = accessed[state]
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastAccessed.After(infos[j].LastAccessed)
	})
	return infos
}

// Delete closes and forgets a workspace.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	state.ws.Close()
	return nil
}

// Len returns the number of active workspaces.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions closes workspaces idle for longer than maxAge, but
// keeps those accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			state.ws.Close()
			delete(m.sessions, id)
			removed++
			slog.Info("cleaned up idle workspace", "workspace", id[:8],
				"idle", now.Sub(state.LastAccessed).Round(time.Second))
		}
	}
	return removed
}

// DetachPlan clears planID from every workspace showing it, e.g. after the
// plan file was deleted.
func (m *Manager) DetachPlan(planID string) int {
	m.mu.RLock()
	var affected []*workspace.Workspace
	for _, state := range m.sessions {
		if state.ws.PlanID() == planID {
			affected = append(affected, state.ws)
		}
	}
	m.mu.RUnlock()

	for _, ws := range affected {
		_ = ws.ClearPlan()
	}
	return len(affected)
}

// Close closes every workspace.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*sessionState)
	m.mu.Unlock()

	for _, state := range sessions {
		state.ws.Close()
	}
}
