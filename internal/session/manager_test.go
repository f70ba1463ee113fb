package session

import (
	"context"
	"testing"
	"time"

	"github.com/plan-placer/backend/internal/viewport"
	"github.com/plan-placer/backend/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTexture struct{}

func (nopTexture) Width() int  { return 4 }
func (nopTexture) Height() int { return 2 }
func (nopTexture) Dispose()    {}

type nopLoader struct{}

func (nopLoader) LoadTexture(ctx context.Context, ref viewport.PlanRef) (viewport.Texture, error) {
	return nopTexture{}, nil
}

func newTestManager(max int) *Manager {
	return NewManager(func(id string) *workspace.Workspace {
		return workspace.New(id, nopLoader{}, workspace.Options{})
	}, max)
}

// age pretends a workspace was last used d ago.
func age(m *Manager, id string, d time.Duration) {
	m.mu.Lock()
	m.sessions[id].LastAccessed = time.Now().Add(-d)
	m.mu.Unlock()
}

func TestManager_CreateGetDelete(t *testing.T) {
	m := newTestManager(0)
	defer m.Close()

	ws, err := m.Create()
	require.NoError(t, err)
	assert.Len(t, ws.ID(), 36)

	got, err := m.Get(ws.ID())
	require.NoError(t, err)
	assert.Same(t, ws, got)

	info, err := m.Info(ws.ID())
	require.NoError(t, err)
	assert.Equal(t, ws.ID(), info.ID)
	assert.False(t, info.LastAccessed.IsZero())

	require.NoError(t, m.Delete(ws.ID()))
	assert.True(t, ws.Closed())

	_, err = m.Get(ws.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ws.ID()), ErrNotFound)
	_, err = m.Info(ws.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_CapacityEvictsIdle(t *testing.T) {
	m := newTestManager(2)
	defer m.Close()

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)

	// Both active: no room.
	_, err = m.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)

	age(m, a.ID(), time.Hour)
	age(m, b.ID(), 10*time.Minute)

	c, err := m.Create()
	require.NoError(t, err)
	assert.True(t, a.Closed(), "least recently used workspace is evicted")
	assert.False(t, b.Closed())
	assert.Equal(t, 2, m.Len())

	_, err = m.Get(c.ID())
	assert.NoError(t, err)
}

func TestManager_CleanupOldSessions(t *testing.T) {
	m := newTestManager(0)
	defer m.Close()

	stale, _ := m.Create()
	idle, _ := m.Create()
	fresh, _ := m.Create()

	age(m, stale.ID(), time.Hour)
	age(m, idle.ID(), 10*time.Minute)

	assert.Equal(t, 1, m.CleanupOldSessions(30*time.Minute))
	assert.True(t, stale.Closed())
	assert.False(t, idle.Closed())
	assert.False(t, fresh.Closed())

	// Within the keep-alive window nothing is removed, even with maxAge 0.
	assert.True(t, m.TouchSession(idle.ID()))
	assert.Equal(t, 0, m.CleanupOldSessions(0))
	assert.False(t, m.TouchSession(stale.ID()))
}

func TestManager_ListAndDetachPlan(t *testing.T) {
	m := newTestManager(0)
	defer m.Close()

	a, _ := m.Create()
	b, _ := m.Create()
	age(m, a.ID(), time.Minute)

	require.NoError(t, a.SetPlan("plan-1"))
	require.NoError(t, b.SetPlan("plan-2"))

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID(), list[0].ID, "most recently used first")

	assert.Equal(t, 1, m.DetachPlan("plan-1"))
	assert.Equal(t, "", a.PlanID())
	assert.Equal(t, "plan-2", b.PlanID())
}
