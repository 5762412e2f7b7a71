package geom

import (
	"github.com/go-gl/mathgl/mgl64"
)

var cellHalf = mgl64.Vec3{0.5, 0.5, 0.5}

// SphereHit clamps the sphere centre into the unit cube of cell and compares the squared
// distance against radius². The metric is that squared distance.
func SphereHit(cell Vec3i, centre mgl64.Vec3, radius float64) (bool, float64) {
	p := cell.Vec3()
	corner := Clamp(centre, p.Sub(cellHalf), p.Add(cellHalf))
	d := DistSq(corner, centre)
	return d <= radius*radius, d
}

// Cylinder is a finite cylinder whose axis starts at the anchor and extends Length along
// the forward direction.
type Cylinder struct {
	Centre mgl64.Vec3
	Axis   mgl64.Vec3
	Radius float64
	Length float64
}

func NewCylinder(anchor, forward mgl64.Vec3, radius, length float64) Cylinder {
	axis := forward
	if axis.Dot(axis) > 0 {
		axis = axis.Normalize()
	}
	return Cylinder{
		Centre: anchor.Add(axis.Mul(length / 2)),
		Axis:   axis,
		Radius: radius,
		Length: length,
	}
}

// Hit projects the cell centre onto the axis, clamps that point to the finite half length,
// takes the point of the cell closest to it and tests both the radial and the axial
// distance. The metric is the radial squared distance.
func (c Cylinder) Hit(cell Vec3i) (bool, float64) {
	half := c.Length / 2
	p := cell.Vec3()
	along := mgl64.Clamp(p.Sub(c.Centre).Dot(c.Axis), -half, half)
	onAxis := c.Centre.Add(c.Axis.Mul(along))
	corner := Clamp(onAxis, p.Sub(cellHalf), p.Add(cellHalf))

	radial := DistSq(corner, onAxis)
	if radial > c.Radius*c.Radius {
		return false, radial
	}
	axial := ProjectOnVector(corner.Sub(c.Centre), c.Axis)
	if LenSq(axial) > half*half {
		return false, radial
	}
	return true, radial
}

// CuboidHit reports any overlap between the unit cube of cell and the box. The metric is the
// squared distance from the cell centre to the box centre.
func CuboidHit(cell Vec3i, box OBB) (bool, float64) {
	p := cell.Vec3()
	d := DistSq(p, box.Center)
	return box.IntersectsAABB(CellBox(cell)), d
}
