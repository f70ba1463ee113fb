// Package workspace ties one machine roster to one plan viewport and runs
// every mutation on a single logical event loop.
package workspace

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/plan-placer/backend/internal/models"
	"github.com/plan-placer/backend/internal/roster"
	"github.com/plan-placer/backend/internal/viewport"
)

// ErrClosed is returned by operations on a closed workspace.
var ErrClosed = errors.New("workspace closed")

// Default viewport size until the client reports its own.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Update is published after every change to the workspace.
type Update struct {
	Seq      uint64           `json:"seq" msgpack:"seq"`
	Frame    viewport.Frame   `json:"frame" msgpack:"frame"`
	Machines []models.Machine `json:"machines" msgpack:"machines"`
}

// Options configures a new workspace.
type Options struct {
	Viewport viewport.Options
	Palette  *roster.Palette
	Width    float64
	Height   float64
}

// Workspace is one placement session: a roster, the scene rendering it and
// the subscribers watching it.
type Workspace struct {
	mu        sync.Mutex
	id        string
	roster    *roster.Roster
	surface   *viewport.Surface
	scene     *viewport.Scene
	hub       *Broadcaster
	seq       uint64
	closed    bool
	createdAt time.Time
	log       *slog.Logger
}

// New creates a workspace that decodes plans with loader.
func New(id string, loader viewport.TextureLoader, opts Options) *Workspace {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if opts.Palette != nil && opts.Palette.Highlight != "" && opts.Viewport.HighlightColor == "" {
		opts.Viewport.HighlightColor = opts.Palette.Highlight
	}

	w := &Workspace{
		id:        id,
		roster:    roster.New(opts.Palette),
		surface:   viewport.NewSurface(opts.Width, opts.Height),
		hub:       NewBroadcaster(),
		createdAt: time.Now(),
		log:       slog.With("workspace", shortID(id)),
	}
	w.scene = viewport.NewScene(w.surface, loader, w.Post, opts.Viewport)
	w.scene.SetMachines(w.roster, viewport.Handlers{
		PositionChanged: w.positionChanged,
		MarkerClicked:   w.markerClicked,
	})
	return w
}

// ID returns the workspace id.
func (w *Workspace) ID() string { return w.id }

// Post runs fn on the workspace event loop and publishes the result.
// After Close, fn still runs so late load completions can dispose their
// textures, but nothing is published.
func (w *Workspace) Post(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn()
	if !w.closed {
		w.publishLocked()
	}
}

// do runs fn on the event loop, publishing only if it succeeds.
func (w *Workspace) do(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := fn(); err != nil {
		return err
	}
	w.publishLocked()
	return nil
}

func (w *Workspace) publishLocked() {
	w.seq++
	w.hub.Publish(w.updateLocked())
}

func (w *Workspace) updateLocked() Update {
	return Update{Seq: w.seq, Frame: w.scene.Render(), Machines: w.roster.List()}
}

// SetPlan starts displaying the stored plan planID. Loading completes in
// the background and publishes another update.
func (w *Workspace) SetPlan(planID string) error {
	return w.do(func() error {
		w.scene.SetPlan(viewport.PlanRef(planID))
		w.log.Info("plan set", "plan", shortID(planID))
		return nil
	})
}

// ReloadPlan retries loading the current plan.
func (w *Workspace) ReloadPlan() error {
	return w.do(func() error {
		w.scene.ReloadPlan()
		return nil
	})
}

// ClearPlan removes the plan. Machines are kept.
func (w *Workspace) ClearPlan() error {
	return w.do(func() error {
		w.scene.SetPlan("")
		return nil
	})
}

// PlanID returns the current plan id, or "" when none is set.
func (w *Workspace) PlanID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.scene.Plan())
}

// AddMachine appends a machine at the origin.
func (w *Workspace) AddMachine(name string) (int, models.Machine, error) {
	var (
		idx int
		m   models.Machine
	)
	err := w.do(func() error {
		var err error
		idx, m, err = w.roster.Add(name)
		return err
	})
	return idx, m, err
}

// RemoveMachine deletes machine index. Any drag in progress is cancelled and
// the selection follows the machine it pointed at.
func (w *Workspace) RemoveMachine(index int) error {
	return w.do(func() error {
		if _, err := w.roster.Get(index); err != nil {
			return err
		}
		w.scene.CancelInteractions()
		if err := w.roster.Remove(index); err != nil {
			return err
		}
		w.syncSelectionLocked()
		return nil
	})
}

// RemoveAll deletes every machine.
func (w *Workspace) RemoveAll() error {
	return w.do(func() error {
		w.scene.CancelInteractions()
		w.roster.RemoveAll()
		w.syncSelectionLocked()
		return nil
	})
}

// RenameMachine renames machine index.
func (w *Workspace) RenameMachine(index int, name string) error {
	_, err := w.UpdateMachine(index, roster.Edit{Name: &name})
	return err
}

// MoveMachine sets the position of machine index directly.
func (w *Workspace) MoveMachine(index int, x, y float64) error {
	_, err := w.UpdateMachine(index, roster.Edit{X: &x, Y: &y})
	return err
}

// UpdateMachine applies a rename and/or move to machine index as one change.
func (w *Workspace) UpdateMachine(index int, e roster.Edit) (models.Machine, error) {
	var m models.Machine
	err := w.do(func() error {
		var err error
		m, err = w.roster.Update(index, e)
		return err
	})
	return m, err
}

// Machines returns a copy of the roster.
func (w *Workspace) Machines() []models.Machine {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roster.List()
}

// Select selects machine index and recenters the camera on it. A negative
// index clears the selection.
func (w *Workspace) Select(index int) error {
	if index < 0 {
		return w.ClearSelection()
	}
	return w.do(func() error {
		return w.selectLocked(index)
	})
}

func (w *Workspace) selectLocked(index int) error {
	if err := w.roster.Select(index); err != nil {
		return err
	}
	w.scene.Select(index)
	return nil
}

// ClearSelection drops the selection without moving the camera.
func (w *Workspace) ClearSelection() error {
	return w.do(func() error {
		w.roster.ClearSelection()
		w.scene.Select(viewport.NoSelection)
		return nil
	})
}

// Selected returns the selected index.
func (w *Workspace) Selected() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roster.Selected()
}

func (w *Workspace) syncSelectionLocked() {
	sel, _ := w.roster.Selected()
	w.scene.ShiftSelection(sel)
}

// Resize changes the viewport size in client pixels.
func (w *Workspace) Resize(width, height float64) error {
	return w.do(func() error {
		w.surface.Resize(width, height)
		return nil
	})
}

// Pointer feeds one pointer event into the viewport.
func (w *Workspace) Pointer(ev viewport.PointerEvent) error {
	return w.do(func() error {
		w.scene.HandlePointer(ev)
		return nil
	})
}

// CancelInteractions ends any drag or pan, e.g. when the client disconnects.
func (w *Workspace) CancelInteractions() error {
	return w.do(func() error {
		w.scene.CancelInteractions()
		return nil
	})
}

// ZoomIn steps the camera in.
func (w *Workspace) ZoomIn() error {
	return w.do(func() error {
		w.scene.ZoomIn()
		return nil
	})
}

// ZoomOut steps the camera out.
func (w *Workspace) ZoomOut() error {
	return w.do(func() error {
		w.scene.ZoomOut()
		return nil
	})
}

// Frame renders the current state without publishing it.
func (w *Workspace) Frame() viewport.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scene.Render()
}

// Snapshot returns the latest update, as a new subscriber would see it.
func (w *Workspace) Snapshot() Update {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updateLocked()
}

// Info summarizes the workspace.
func (w *Workspace) Info() models.WorkspaceInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	info := models.WorkspaceInfo{
		ID:           w.id,
		PlanID:       string(w.scene.Plan()),
		PlanState:    viewport.BackdropUnloaded.String(),
		MachineCount: w.roster.Len(),
		CreatedAt:    w.createdAt,
	}
	if b := w.scene.Backdrop(); b != nil {
		info.PlanState = b.State().String()
	}
	if sel, ok := w.roster.Selected(); ok {
		info.Selected = &sel
	}
	return info
}

// Subscribe returns a channel receiving every later update. The channel is
// closed on Unsubscribe or Close.
func (w *Workspace) Subscribe() chan Update {
	return w.hub.Subscribe()
}

// Unsubscribe stops delivery to ch.
func (w *Workspace) Unsubscribe(ch chan Update) {
	w.hub.Unsubscribe(ch)
}

// Close disposes the plan texture and removes every viewport listener.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.scene.Close()
	w.mu.Unlock()

	w.hub.CloseAll()
	w.log.Debug("workspace closed")
}

// Closed reports whether Close has been called.
func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// positionChanged and markerClicked run inside HandlePointer, already on
// the event loop.
func (w *Workspace) positionChanged(index int, x, y float64) {
	if err := w.roster.UpdatePosition(index, x, y); err != nil {
		w.log.Warn("dropping position update", "index", index, "err", err)
	}
}

func (w *Workspace) markerClicked(index int) {
	if err := w.selectLocked(index); err != nil {
		w.log.Warn("dropping marker click", "index", index, "err", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
