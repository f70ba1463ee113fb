package viewport

// PointerKind identifies a pointer event.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	Wheel
)

func (k PointerKind) String() string {
	switch k {
	case PointerDown:
		return "pointerdown"
	case PointerMove:
		return "pointermove"
	case PointerUp:
		return "pointerup"
	case Wheel:
		return "wheel"
	default:
		return "unknown"
	}
}

// PointerEvent is one pointer event in viewport client pixels.
type PointerEvent struct {
	Kind    PointerKind
	ClientX float64
	ClientY float64
	DeltaY  float64 // wheel only; negative scrolls in

	stopped bool
}

// StopPropagation keeps the event away from surface-level listeners.
func (e *PointerEvent) StopPropagation() { e.stopped = true }

// Stopped reports whether StopPropagation was called.
func (e *PointerEvent) Stopped() bool { return e.stopped }

// Listener handles a pointer event dispatched on a Surface.
type Listener func(ev *PointerEvent)

type subscription struct {
	id   int
	kind PointerKind
	fn   Listener
}

// Surface is the viewport's drawing area: it has a pixel size and carries
// surface-level pointer listeners, the equivalent of listeners attached to a
// canvas element.
type Surface struct {
	width  float64
	height float64
	subs   []subscription
	nextID int
}

// NewSurface returns a surface of the given pixel size.
func NewSurface(width, height float64) *Surface {
	return &Surface{width: width, height: height}
}

// Size returns the surface size in pixels.
func (s *Surface) Size() (width, height float64) { return s.width, s.height }

// Resize changes the surface size. Non-positive sizes are kept; mapping
// against them reports no intersection.
func (s *Surface) Resize(width, height float64) {
	s.width, s.height = width, height
}

// Listen registers fn for events of kind and returns the function that
// removes it. The cancel function may be called more than once.
func (s *Surface) Listen(kind PointerKind, fn Listener) (cancel func()) {
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, kind: kind, fn: fn})
	return func() { s.remove(id) }
}

func (s *Surface) remove(id int) {
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// ListenerCount returns how many listeners of kind are registered.
func (s *Surface) ListenerCount(kind PointerKind) int {
	n := 0
	for _, sub := range s.subs {
		if sub.kind == kind {
			n++
		}
	}
	return n
}

// Listeners returns the total number of registered listeners.
func (s *Surface) Listeners() int { return len(s.subs) }

// Dispatch delivers ev to the listeners registered for its kind, in
// registration order. Listeners added or removed during dispatch take effect
// from the next event.
func (s *Surface) Dispatch(ev *PointerEvent) {
	var fns []Listener
	for _, sub := range s.subs {
		if sub.kind == ev.Kind {
			fns = append(fns, sub.fn)
		}
	}
	for _, fn := range fns {
		if ev.Stopped() {
			return
		}
		fn(ev)
	}
}
