package viewport

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plan-placer/backend/internal/models"
)

// labelDepth lifts marker labels just above the marker face.
const labelDepth = 0.1

// markerHost is what a marker needs from the scene that owns it.
type markerHost interface {
	surface() *Surface
	camera() Camera
	mapper() Mapper
	positionChanged(index int, x, y float64)
	clicked(index int)
}

// Marker is the draggable rectangle for one roster entry. It is keyed by
// roster index and reads its machine from the roster on every render.
type Marker struct {
	index int
	host  markerHost

	dragging bool
	moved    bool
	visual   mgl64.Vec2

	cancelMove func()
	cancelUp   func()
}

func newMarker(index int, host markerHost) *Marker {
	return &Marker{index: index, host: host}
}

// Index returns the roster index the marker renders.
func (m *Marker) Index() int { return m.index }

// Dragging reports whether the marker is being dragged.
func (m *Marker) Dragging() bool { return m.dragging }

// contains reports whether world point p lies on a marker at machine's
// position.
func (m *Marker) contains(machine models.Machine, p mgl64.Vec3, w, h float64) bool {
	x, y := m.position(machine)
	return math.Abs(p[0]-x) <= w/2 && math.Abs(p[1]-y) <= h/2
}

func (m *Marker) position(machine models.Machine) (x, y float64) {
	if m.dragging && m.moved {
		return m.visual[0], m.visual[1]
	}
	return machine.X, machine.Y
}

// pointerDown starts a drag. The event is stopped so the pan control never
// moves the camera while a marker is being dragged.
func (m *Marker) pointerDown(ev *PointerEvent) {
	ev.StopPropagation()
	if m.dragging {
		return
	}
	m.dragging = true
	m.moved = false

	s := m.host.surface()
	m.cancelMove = s.Listen(PointerMove, m.pointerMove)
	m.cancelUp = s.Listen(PointerUp, m.pointerUp)
}

func (m *Marker) pointerMove(ev *PointerEvent) {
	if !m.dragging {
		return
	}
	p, ok := m.host.mapper().ToPlane(m.host.camera(), ev.ClientX, ev.ClientY)
	if !ok {
		return
	}
	m.moved = true
	m.visual = mgl64.Vec2{p[0], p[1]}
	m.host.positionChanged(m.index, p[0], p[1])
}

func (m *Marker) pointerUp(*PointerEvent) {
	if !m.dragging {
		return
	}
	clicked := !m.moved
	m.endDrag()
	if clicked {
		m.host.clicked(m.index)
	}
}

// endDrag returns the marker to idle and drops its surface listeners.
func (m *Marker) endDrag() {
	if m.cancelMove != nil {
		m.cancelMove()
		m.cancelMove = nil
	}
	if m.cancelUp != nil {
		m.cancelUp()
		m.cancelUp = nil
	}
	m.dragging = false
	m.moved = false
}

func (m *Marker) render(machine models.Machine, selected bool, opts Options) MarkerFrame {
	x, y := m.position(machine)
	color := machine.Color
	if selected {
		color = opts.HighlightColor
	}
	return MarkerFrame{
		Index:    m.index,
		Label:    machine.Name,
		Color:    color,
		X:        x,
		Y:        y,
		Z:        0,
		LabelZ:   labelDepth,
		Width:    opts.MarkerWidth,
		Height:   opts.MarkerHeight,
		Selected: selected,
		Dragging: m.dragging,
	}
}
