// Package viewport implements the interactive plan viewport: a headless scene
// with an orthographic camera looking down -z, a textured backdrop behind the
// z=0 interaction plane, and draggable machine markers lying on it.
//
// A Scene is not safe for concurrent use. Its owner runs every call on one
// logical event loop and supplies a post function through which background
// work (texture decoding) re-enters that loop.
package viewport

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// parallelEpsilon is the smallest |n·d| accepted by plane intersection.
const parallelEpsilon = 1e-12

// Plane is the set of points p with Normal·p + Constant = 0.
type Plane struct {
	Normal   mgl64.Vec3
	Constant float64
}

// InteractionPlane is the fixed z=0 surface markers live on.
var InteractionPlane = Plane{Normal: mgl64.Vec3{0, 0, 1}, Constant: 0}

// Ray is a half-line starting at Origin. Direction is unit length.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// IntersectPlane returns the point where r crosses p. It reports false when
// the ray runs parallel to the plane, points away from it, or the result is
// not finite.
func (r Ray) IntersectPlane(p Plane) (mgl64.Vec3, bool) {
	denom := p.Normal.Dot(r.Direction)
	if math.Abs(denom) < parallelEpsilon {
		return mgl64.Vec3{}, false
	}

	t := -(r.Origin.Dot(p.Normal) + p.Constant) / denom
	if t < 0 || !finite(t) {
		return mgl64.Vec3{}, false
	}

	hit := r.Origin.Add(r.Direction.Mul(t))
	if !finite(hit[0]) || !finite(hit[1]) || !finite(hit[2]) {
		return mgl64.Vec3{}, false
	}
	return hit, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
