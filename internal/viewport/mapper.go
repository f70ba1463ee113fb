package viewport

import "github.com/go-gl/mathgl/mgl64"

// Mapper converts pointer positions into points on a fixed plane.
// It works on value types only and is safe to call on every pointer move.
type Mapper struct {
	plane Plane
}

// NewMapper returns a mapper onto the z=0 interaction plane.
func NewMapper() Mapper {
	return Mapper{plane: InteractionPlane}
}

// ToNDC converts client pixel coordinates into normalized device
// coordinates. Screen Y grows downward, world Y upward, so Y is flipped.
func ToNDC(clientX, clientY, width, height float64) (x, y float64) {
	return clientX/width*2 - 1, -(clientY/height)*2 + 1
}

// ToPlane returns the world point under the pointer. It reports false when
// the viewport has no area, the inputs are not finite, or the camera ray
// never meets the plane.
func (m Mapper) ToPlane(cam Camera, clientX, clientY float64) (mgl64.Vec3, bool) {
	if cam.Width <= 0 || cam.Height <= 0 || !finite(clientX) || !finite(clientY) {
		return mgl64.Vec3{}, false
	}

	ndcX, ndcY := ToNDC(clientX, clientY, cam.Width, cam.Height)
	ray, ok := cam.RayThrough(ndcX, ndcY)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return ray.IntersectPlane(m.plane)
}
