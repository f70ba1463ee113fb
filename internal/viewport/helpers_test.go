package viewport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plan-placer/backend/internal/models"
)

type fakeTexture struct {
	mu       sync.Mutex
	w, h     int
	disposed int
}

func (t *fakeTexture) Width() int  { return t.w }
func (t *fakeTexture) Height() int { return t.h }
func (t *fakeTexture) Dispose() {
	t.mu.Lock()
	t.disposed++
	t.mu.Unlock()
}

func (t *fakeTexture) disposeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

// fakeLoader hands out textures of a fixed size or fails for refs listed in
// fail.
type fakeLoader struct {
	mu       sync.Mutex
	w, h     int
	fail     map[PlanRef]error
	calls    []PlanRef
	textures []*fakeTexture
}

func newFakeLoader(w, h int) *fakeLoader {
	return &fakeLoader{w: w, h: h, fail: make(map[PlanRef]error)}
}

func (l *fakeLoader) LoadTexture(ctx context.Context, ref PlanRef) (Texture, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ref)
	if err, ok := l.fail[ref]; ok {
		return nil, err
	}
	tex := &fakeTexture{w: l.w, h: l.h}
	l.textures = append(l.textures, tex)
	return tex, nil
}

func (l *fakeLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *fakeLoader) texture(i int) *fakeTexture {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.textures[i]
}

var errDecode = errors.New("decode failed")

// eventLoop collects posted completions so tests decide when they run.
type eventLoop chan func()

func newEventLoop() eventLoop { return make(eventLoop, 16) }

func (l eventLoop) post(fn func()) { l <- fn }

func (l eventLoop) runOne(t *testing.T) {
	t.Helper()
	select {
	case fn := <-l:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for posted completion")
	}
}

// machines is a minimal roster: writes go through setPosition only.
type machines struct {
	list []models.Machine
}

func (m *machines) Len() int                { return len(m.list) }
func (m *machines) At(i int) models.Machine { return m.list[i] }
func (m *machines) setPosition(i int, x, y float64) {
	if i >= 0 && i < len(m.list) {
		m.list[i].X, m.list[i].Y = x, y
	}
}

type moveRecord struct {
	index int
	x, y  float64
}

// newReadyScene returns an 800x600 scene with a displayed 200x100 plan and
// the given machines.
func newReadyScene(t *testing.T, ms *machines) (*Scene, *fakeLoader, eventLoop, *[]moveRecord) {
	t.Helper()
	loop := newEventLoop()
	loader := newFakeLoader(200, 100)
	s := NewScene(NewSurface(800, 600), loader, loop.post, DefaultOptions())

	var moves []moveRecord
	s.SetMachines(ms, Handlers{
		PositionChanged: func(i int, x, y float64) {
			moves = append(moves, moveRecord{i, x, y})
			ms.setPosition(i, x, y)
		},
	})
	s.SetPlan("plan-1")
	loop.runOne(t)
	return s, loader, loop, &moves
}
