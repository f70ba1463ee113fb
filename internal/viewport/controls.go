package viewport

// PanControl turns background drags into pan target changes and wheel
// events into zoom steps. Rotation is not supported: the camera always looks
// straight down -z.
type PanControl struct {
	surface *Surface
	rig     *Rig

	panning bool
	lastX   float64
	lastY   float64

	cancelDown  func()
	cancelWheel func()
	cancelMove  func()
	cancelUp    func()
}

func newPanControl(surface *Surface, rig *Rig) *PanControl {
	c := &PanControl{surface: surface, rig: rig}
	c.cancelDown = surface.Listen(PointerDown, c.pointerDown)
	c.cancelWheel = surface.Listen(Wheel, c.wheel)
	return c
}

// Panning reports whether a background drag is in progress.
func (c *PanControl) Panning() bool { return c.panning }

func (c *PanControl) pointerDown(ev *PointerEvent) {
	if c.panning {
		return
	}
	c.panning = true
	c.lastX, c.lastY = ev.ClientX, ev.ClientY
	c.cancelMove = c.surface.Listen(PointerMove, c.pointerMove)
	c.cancelUp = c.surface.Listen(PointerUp, c.pointerUp)
}

func (c *PanControl) pointerMove(ev *PointerEvent) {
	if !c.panning {
		return
	}
	dx, dy := ev.ClientX-c.lastX, ev.ClientY-c.lastY
	c.lastX, c.lastY = ev.ClientX, ev.ClientY

	// Content follows the pointer, so the camera moves the other way.
	// Screen Y is flipped relative to world Y.
	z := c.rig.Zoom()
	c.rig.PanBy(-dx/z, dy/z)
}

func (c *PanControl) pointerUp(*PointerEvent) {
	c.stop()
}

func (c *PanControl) wheel(ev *PointerEvent) {
	switch {
	case ev.DeltaY < 0:
		c.rig.ZoomIn()
	case ev.DeltaY > 0:
		c.rig.ZoomOut()
	}
}

func (c *PanControl) stop() {
	if c.cancelMove != nil {
		c.cancelMove()
		c.cancelMove = nil
	}
	if c.cancelUp != nil {
		c.cancelUp()
		c.cancelUp = nil
	}
	c.panning = false
}

func (c *PanControl) close() {
	c.stop()
	if c.cancelDown != nil {
		c.cancelDown()
		c.cancelDown = nil
	}
	if c.cancelWheel != nil {
		c.cancelWheel()
		c.cancelWheel = nil
	}
}
