package viewport

import (
	"strings"

	"github.com/plan-placer/backend/internal/models"
)

// NoSelection marks the absence of a selected machine.
const NoSelection = -1

// MachineSource is the read-only view of the roster the scene renders from.
type MachineSource interface {
	Len() int
	At(index int) models.Machine
}

// Handlers are the intents the scene raises toward the roster owner.
type Handlers struct {
	// PositionChanged is called synchronously on every drag move.
	PositionChanged func(index int, x, y float64)
	// MarkerClicked is called when a marker is pressed and released without
	// moving.
	MarkerClicked func(index int)
}

// Options configures a scene.
type Options struct {
	Rig            RigOptions
	MarkerWidth    float64
	MarkerHeight   float64
	HighlightColor string
	BackdropDepth  float64
}

// DefaultOptions mirrors the stock viewport: 0.2 x 0.1 markers highlighted in
// yellow over a backdrop 0.1 units behind the plane.
func DefaultOptions() Options {
	return Options{
		Rig:            DefaultRigOptions(),
		MarkerWidth:    0.2,
		MarkerHeight:   0.1,
		HighlightColor: "#ffff00",
		BackdropDepth:  0.1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MarkerWidth <= 0 {
		o.MarkerWidth = def.MarkerWidth
	}
	if o.MarkerHeight <= 0 {
		o.MarkerHeight = def.MarkerHeight
	}
	if strings.TrimSpace(o.HighlightColor) == "" {
		o.HighlightColor = def.HighlightColor
	}
	if o.BackdropDepth <= 0 {
		o.BackdropDepth = def.BackdropDepth
	}
	return o
}

// Scene composes backdrop, markers, camera rig and pan control. With no plan
// set it holds none of them and renders the empty placeholder.
type Scene struct {
	opts    Options
	loader  TextureLoader
	post    func(func())
	surf    *Surface
	rig     *Rig
	mapr    Mapper
	source  MachineSource
	handles Handlers

	plan     PlanRef
	backdrop *Backdrop
	pan      *PanControl
	markers  []*Marker
	selected int
}

// NewScene returns a scene drawing onto surf. post must run its argument on
// the goroutine that owns the scene.
func NewScene(surf *Surface, loader TextureLoader, post func(func()), opts Options) *Scene {
	opts = opts.withDefaults()
	return &Scene{
		opts:     opts,
		loader:   loader,
		post:     post,
		surf:     surf,
		rig:      NewRig(opts.Rig),
		mapr:     NewMapper(),
		selected: NoSelection,
	}
}

// Rig returns the camera rig.
func (s *Scene) Rig() *Rig { return s.rig }

// Surface returns the surface the scene listens on.
func (s *Scene) Surface() *Surface { return s.surf }

// Backdrop returns the plan backdrop, or nil when no plan is set.
func (s *Scene) Backdrop() *Backdrop { return s.backdrop }

// Plan returns the current plan resource.
func (s *Scene) Plan() PlanRef { return s.plan }

// SetPlan replaces the plan. An empty ref unmounts the scene: listeners are
// removed and the texture disposed before SetPlan returns.
func (s *Scene) SetPlan(ref PlanRef) {
	if ref == s.plan && (ref == "" || s.backdrop != nil) {
		return
	}
	if ref == "" {
		s.unmount()
		return
	}

	s.plan = ref
	if s.backdrop == nil {
		s.mount()
	}
	s.backdrop.Load(ref)
}

// ReloadPlan starts loading the current plan again, typically after a
// failure.
func (s *Scene) ReloadPlan() {
	if s.backdrop != nil {
		s.backdrop.Load(s.plan)
	}
}

func (s *Scene) mount() {
	s.backdrop = NewBackdrop(s.loader, s.post, s.opts.BackdropDepth)
	s.pan = newPanControl(s.surf, s.rig)
	s.syncMarkers()
}

func (s *Scene) unmount() {
	for _, m := range s.markers {
		m.endDrag()
	}
	s.markers = nil
	if s.pan != nil {
		s.pan.close()
		s.pan = nil
	}
	if s.backdrop != nil {
		s.backdrop.Close()
		s.backdrop = nil
	}
	s.plan = ""
}

// SetMachines sets the roster the scene renders from and the handlers it
// reports to.
func (s *Scene) SetMachines(src MachineSource, h Handlers) {
	s.source = src
	s.handles = h
	s.syncMarkers()
}

// Select changes the selection. A change to a valid index recenters the
// camera on that machine. NoSelection and out-of-range indexes clear the
// selection and leave the pan target where it is.
func (s *Scene) Select(index int) {
	if s.source == nil || index < 0 || index >= s.source.Len() {
		index = NoSelection
	}
	if index == s.selected {
		return
	}
	s.selected = index
	s.rig.Recenter(s.source, index)
}

// ShiftSelection follows the selected machine to a new index after the
// roster was reordered, without recentering.
func (s *Scene) ShiftSelection(index int) {
	s.selected = index
}

// Selected returns the selected index if it is valid for the current roster.
func (s *Scene) Selected() (int, bool) {
	if s.source == nil || s.selected < 0 || s.selected >= s.source.Len() {
		return NoSelection, false
	}
	return s.selected, true
}

// ZoomIn steps the camera zoom in.
func (s *Scene) ZoomIn() { s.rig.ZoomIn() }

// ZoomOut steps the camera zoom out.
func (s *Scene) ZoomOut() { s.rig.ZoomOut() }

// HandlePointer routes a pointer event: pointer-down goes to the topmost
// marker under the pointer first, then, unless stopped, to surface listeners.
// Input is dropped while no scene is shown, and a second pointer-down during
// a drag or pan is ignored.
func (s *Scene) HandlePointer(ev PointerEvent) {
	if s.backdrop == nil {
		return
	}
	if s.backdrop.State() == BackdropFailed {
		s.CancelInteractions()
		return
	}
	s.syncMarkers()

	if ev.Kind == PointerDown {
		if _, dragging := s.Dragging(); dragging || (s.pan != nil && s.pan.Panning()) {
			return
		}
		if m := s.hitTest(ev.ClientX, ev.ClientY); m != nil {
			m.pointerDown(&ev)
		}
	}
	if ev.Stopped() {
		return
	}
	s.surf.Dispatch(&ev)
}

// CancelInteractions ends any drag or pan in progress.
func (s *Scene) CancelInteractions() {
	for _, m := range s.markers {
		m.endDrag()
	}
	if s.pan != nil {
		s.pan.stop()
	}
}

// Dragging returns the index of the marker being dragged.
func (s *Scene) Dragging() (int, bool) {
	for _, m := range s.markers {
		if m.Dragging() {
			return m.index, true
		}
	}
	return NoSelection, false
}

// Markers returns the live marker entities.
func (s *Scene) Markers() []*Marker { return s.markers }

// Close unmounts the scene.
func (s *Scene) Close() { s.unmount() }

// Render runs one render pass. The camera is derived from the rig on every
// call.
func (s *Scene) Render() Frame {
	if s.backdrop == nil {
		return Frame{State: FrameEmpty, Message: MessageNoPlan}
	}
	s.syncMarkers()

	if s.backdrop.State() == BackdropFailed {
		f := Frame{State: FrameFailed, Message: MessagePlanFailed}
		if err := s.backdrop.Err(); err != nil {
			f.Error = err.Error()
		}
		return f
	}

	cam := s.camera()
	minX, minY, maxX, maxY := cam.Bounds()
	f := Frame{
		State: FrameReady,
		Camera: &CameraFrame{
			X: cam.Position[0], Y: cam.Position[1], Z: cam.Position[2],
			Zoom: cam.Zoom,
			MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY,
			Width: cam.Width, Height: cam.Height,
		},
		Backdrop: s.backdrop.Render(),
	}
	if s.backdrop.State() == BackdropLoading {
		f.State = FrameLoading
	}

	sel, ok := s.Selected()
	if ok {
		f.Selected = &sel
	}
	f.Markers = make([]MarkerFrame, 0, len(s.markers))
	for _, m := range s.markers {
		f.Markers = append(f.Markers, m.render(s.source.At(m.index), ok && m.index == sel, s.opts))
	}
	return f
}

// syncMarkers keeps one marker per roster entry. Markers past the end of a
// shrunk roster are torn down.
func (s *Scene) syncMarkers() {
	if s.backdrop == nil {
		return
	}
	n := 0
	if s.source != nil {
		n = s.source.Len()
	}
	for len(s.markers) > n {
		last := s.markers[len(s.markers)-1]
		last.endDrag()
		s.markers = s.markers[:len(s.markers)-1]
	}
	for len(s.markers) < n {
		s.markers = append(s.markers, newMarker(len(s.markers), s))
	}
}

// hitTest returns the topmost marker under the pointer. Later roster
// entries draw over earlier ones.
func (s *Scene) hitTest(clientX, clientY float64) *Marker {
	if s.source == nil {
		return nil
	}
	p, ok := s.mapr.ToPlane(s.camera(), clientX, clientY)
	if !ok {
		return nil
	}
	for i := len(s.markers) - 1; i >= 0; i-- {
		m := s.markers[i]
		if m.contains(s.source.At(m.index), p, s.opts.MarkerWidth, s.opts.MarkerHeight) {
			return m
		}
	}
	return nil
}

func (s *Scene) surface() *Surface { return s.surf }

func (s *Scene) camera() Camera {
	w, h := s.surf.Size()
	return s.rig.Camera(w, h)
}

func (s *Scene) mapper() Mapper { return s.mapr }

func (s *Scene) positionChanged(index int, x, y float64) {
	if s.handles.PositionChanged != nil {
		s.handles.PositionChanged(index, x, y)
	}
}

func (s *Scene) clicked(index int) {
	if s.handles.MarkerClicked != nil {
		s.handles.MarkerClicked(index)
	}
}
