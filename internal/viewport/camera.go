package viewport

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RigOptions tunes the camera rig.
type RigOptions struct {
	DefaultZoom float64
	ZoomFactor  float64
	MinZoom     float64
	MaxZoom     float64
	Distance    float64 // how far back along +z the camera sits
	Near        float64
	Far         float64
}

// DefaultRigOptions returns zoom 50 stepped by 1.2 and a camera five units
// above the plane.
func DefaultRigOptions() RigOptions {
	return RigOptions{
		DefaultZoom: 50,
		ZoomFactor:  1.2,
		MinZoom:     1,
		MaxZoom:     2000,
		Distance:    5,
		Near:        0.1,
		Far:         1000,
	}
}

// Camera is an orthographic camera derived from rig state for one render
// pass. Width and Height are the viewport size in pixels; Zoom is pixels per
// world unit.
type Camera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3
	Zoom     float64
	Width    float64
	Height   float64
	Near     float64
	Far      float64
}

// Projection returns the orthographic projection matrix.
func (c Camera) Projection() mgl64.Mat4 {
	left, right, bottom, top := c.frustum()
	return mgl64.Ortho(left, right, bottom, top, c.Near, c.Far)
}

// View returns the world-to-camera matrix.
func (c Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position, c.Target, c.Up)
}

// Bounds returns the world rectangle visible on the plane under the camera.
func (c Camera) Bounds() (minX, minY, maxX, maxY float64) {
	left, right, bottom, top := c.frustum()
	return c.Position[0] + left, c.Position[1] + bottom, c.Position[0] + right, c.Position[1] + top
}

func (c Camera) frustum() (left, right, bottom, top float64) {
	hw := c.Width / (2 * c.Zoom)
	hh := c.Height / (2 * c.Zoom)
	return -hw, hw, -hh, hh
}

// RayThrough builds the world-space ray through a point in normalized device
// coordinates by unprojecting it on the near and far clip planes.
func (c Camera) RayThrough(ndcX, ndcY float64) (Ray, bool) {
	if c.Zoom <= 0 || c.Width <= 0 || c.Height <= 0 {
		return Ray{}, false
	}

	viewProj := c.Projection().Mul4(c.View())
	if det := viewProj.Det(); det == 0 || !finite(det) {
		return Ray{}, false
	}
	inv := viewProj.Inv()

	near, ok := unproject(inv, ndcX, ndcY, -1)
	if !ok {
		return Ray{}, false
	}
	far, ok := unproject(inv, ndcX, ndcY, 1)
	if !ok {
		return Ray{}, false
	}

	dir := far.Sub(near)
	if dir.Len() == 0 {
		return Ray{}, false
	}
	return Ray{Origin: near, Direction: dir.Normalize()}, true
}

func unproject(inv mgl64.Mat4, x, y, z float64) (mgl64.Vec3, bool) {
	v := inv.Mul4x1(mgl64.Vec4{x, y, z, 1})
	if v.W() == 0 {
		return mgl64.Vec3{}, false
	}
	return v.Vec3().Mul(1 / v.W()), true
}

// Rig holds the camera state that survives between render passes: zoom and
// pan target. The camera itself is recomputed from it on every pass.
type Rig struct {
	opts RigOptions
	panX float64
	panY float64
	zoom float64
}

// NewRig returns a rig at the origin with the default zoom. Missing or
// inconsistent options fall back to the defaults.
func NewRig(opts RigOptions) *Rig {
	def := DefaultRigOptions()
	if opts.ZoomFactor <= 1 {
		opts.ZoomFactor = def.ZoomFactor
	}
	if opts.MinZoom <= 0 {
		opts.MinZoom = def.MinZoom
	}
	if opts.MaxZoom < opts.MinZoom {
		opts.MaxZoom = math.Max(def.MaxZoom, opts.MinZoom)
	}
	if opts.Distance <= 0 {
		opts.Distance = def.Distance
	}
	if opts.Near <= 0 {
		opts.Near = def.Near
	}
	if opts.Far <= opts.Near {
		opts.Far = def.Far
	}
	if opts.DefaultZoom <= 0 {
		opts.DefaultZoom = def.DefaultZoom
	}

	r := &Rig{opts: opts}
	r.zoom = r.clamp(opts.DefaultZoom)
	return r
}

// Zoom returns the current zoom level.
func (r *Rig) Zoom() float64 { return r.zoom }

// Pan returns the current pan target.
func (r *Rig) Pan() (x, y float64) { return r.panX, r.panY }

// SetPan moves the pan target. Non-finite targets are ignored.
func (r *Rig) SetPan(x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	r.panX, r.panY = x, y
}

// PanBy shifts the pan target by a world-space delta.
func (r *Rig) PanBy(dx, dy float64) {
	r.SetPan(r.panX+dx, r.panY+dy)
}

// ZoomIn multiplies zoom by the zoom factor, up to MaxZoom.
func (r *Rig) ZoomIn() { r.zoom = r.clamp(r.zoom * r.opts.ZoomFactor) }

// ZoomOut divides zoom by the zoom factor, down to MinZoom.
func (r *Rig) ZoomOut() { r.zoom = r.clamp(r.zoom / r.opts.ZoomFactor) }

// SetZoom sets zoom directly, clamped to the configured bounds.
func (r *Rig) SetZoom(z float64) {
	if !finite(z) || z <= 0 {
		return
	}
	r.zoom = r.clamp(z)
}

// Recenter points the pan target at machine index of src. Out-of-range
// indexes leave the pan target unchanged and return false.
func (r *Rig) Recenter(src MachineSource, index int) bool {
	if src == nil || index < 0 || index >= src.Len() {
		return false
	}
	m := src.At(index)
	r.SetPan(m.X, m.Y)
	return true
}

// Camera derives the camera for a viewport of the given pixel size.
func (r *Rig) Camera(width, height float64) Camera {
	return Camera{
		Position: mgl64.Vec3{r.panX, r.panY, r.opts.Distance},
		Target:   mgl64.Vec3{r.panX, r.panY, 0},
		Up:       mgl64.Vec3{0, 1, 0},
		Zoom:     r.zoom,
		Width:    width,
		Height:   height,
		Near:     r.opts.Near,
		Far:      r.opts.Far,
	}
}

func (r *Rig) clamp(z float64) float64 {
	return math.Min(math.Max(z, r.opts.MinZoom), r.opts.MaxZoom)
}
