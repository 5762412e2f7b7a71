package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const sepEpsilon = 1e-9

// AABB is an axis-aligned box in whatever space its producer works in.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// CellBox is the unit cube occupied by cell c in grid-local scaled space.
func CellBox(c Vec3i) AABB {
	p := c.Vec3()
	h := mgl64.Vec3{0.5, 0.5, 0.5}
	return AABB{Min: p.Sub(h), Max: p.Add(h)}
}

func (b AABB) Center() mgl64.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

func (b AABB) HalfExtents() mgl64.Vec3 { return b.Max.Sub(b.Min).Mul(0.5) }

// OBB is an oriented box. Axes holds the box's local right, up and backward unit vectors
// as columns; HalfExtent is measured along those axes.
type OBB struct {
	Center     mgl64.Vec3
	Axes       mgl64.Mat3
	HalfExtent mgl64.Vec3
}

// Orientation builds a right-handed basis whose forward direction is -Z, matching a
// forward/up camera convention. A degenerate up is replaced by the world axis least
// aligned with forward.
func Orientation(forward, up mgl64.Vec3) mgl64.Mat3 {
	f := forward.Normalize()
	right := f.Cross(up)
	if right.Dot(right) < 1e-12 {
		alt := mgl64.Vec3{0, 1, 0}
		if math.Abs(f[1]) > 0.9 {
			alt = mgl64.Vec3{1, 0, 0}
		}
		right = f.Cross(alt)
	}
	right = right.Normalize()
	u := right.Cross(f).Normalize()
	return mgl64.Mat3FromCols(right, u, f.Mul(-1))
}

// AxisAligned returns an OBB equal to b.
func AxisAligned(b AABB) OBB {
	return OBB{Center: b.Center(), Axes: mgl64.Ident3(), HalfExtent: b.HalfExtents()}
}

// AABBHalfExtents is the half size of the smallest axis-aligned box enclosing o.
func (o OBB) AABBHalfExtents() mgl64.Vec3 {
	var h mgl64.Vec3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i] += math.Abs(o.Axes.At(i, j)) * o.HalfExtent[j]
		}
	}
	return h
}

func (o OBB) AABB() AABB {
	h := o.AABBHalfExtents()
	return AABB{Min: o.Center.Sub(h), Max: o.Center.Add(h)}
}

// Corners lists the eight box corners.
func (o OBB) Corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	n := 0
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				p := o.Center.
					Add(o.Axes.Col(0).Mul(sx * o.HalfExtent[0])).
					Add(o.Axes.Col(1).Mul(sy * o.HalfExtent[1])).
					Add(o.Axes.Col(2).Mul(sz * o.HalfExtent[2]))
				out[n] = p
				n++
			}
		}
	}
	return out
}

// ContainsPoint reports whether p lies inside or on the box.
func (o OBB) ContainsPoint(p mgl64.Vec3) bool {
	d := p.Sub(o.Center)
	for j := 0; j < 3; j++ {
		if math.Abs(d.Dot(o.Axes.Col(j))) > o.HalfExtent[j]+sepEpsilon {
			return false
		}
	}
	return true
}

// IntersectsAABB is a separating-axis test over the 15 candidate axes. Touching boxes
// count as intersecting.
func (o OBB) IntersectsAABB(box AABB) bool {
	a := box.HalfExtents()
	b := o.HalfExtent
	t := o.Center.Sub(box.Center())

	var r, ar [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = o.Axes.At(i, j)
			ar[i][j] = math.Abs(r[i][j]) + sepEpsilon
		}
	}

	for i := 0; i < 3; i++ {
		ra := a[i]
		rb := b[0]*ar[i][0] + b[1]*ar[i][1] + b[2]*ar[i][2]
		if math.Abs(t[i]) > ra+rb {
			return false
		}
	}
	for j := 0; j < 3; j++ {
		ra := a[0]*ar[0][j] + a[1]*ar[1][j] + a[2]*ar[2][j]
		rb := b[j]
		if math.Abs(t[0]*r[0][j]+t[1]*r[1][j]+t[2]*r[2][j]) > ra+rb {
			return false
		}
	}

	// A0 x B0..B2
	if math.Abs(t[2]*r[1][0]-t[1]*r[2][0]) > a[1]*ar[2][0]+a[2]*ar[1][0]+b[1]*ar[0][2]+b[2]*ar[0][1] {
		return false
	}
	if math.Abs(t[2]*r[1][1]-t[1]*r[2][1]) > a[1]*ar[2][1]+a[2]*ar[1][1]+b[0]*ar[0][2]+b[2]*ar[0][0] {
		return false
	}
	if math.Abs(t[2]*r[1][2]-t[1]*r[2][2]) > a[1]*ar[2][2]+a[2]*ar[1][2]+b[0]*ar[0][1]+b[1]*ar[0][0] {
		return false
	}
	// A1 x B0..B2
	if math.Abs(t[0]*r[2][0]-t[2]*r[0][0]) > a[0]*ar[2][0]+a[2]*ar[0][0]+b[1]*ar[1][2]+b[2]*ar[1][1] {
		return false
	}
	if math.Abs(t[0]*r[2][1]-t[2]*r[0][1]) > a[0]*ar[2][1]+a[2]*ar[0][1]+b[0]*ar[1][2]+b[2]*ar[1][0] {
		return false
	}
	if math.Abs(t[0]*r[2][2]-t[2]*r[0][2]) > a[0]*ar[2][2]+a[2]*ar[0][2]+b[0]*ar[1][1]+b[1]*ar[1][0] {
		return false
	}
	// A2 x B0..B2
	if math.Abs(t[1]*r[0][0]-t[0]*r[1][0]) > a[0]*ar[1][0]+a[1]*ar[0][0]+b[1]*ar[2][2]+b[2]*ar[2][1] {
		return false
	}
	if math.Abs(t[1]*r[0][1]-t[0]*r[1][1]) > a[0]*ar[1][1]+a[1]*ar[0][1]+b[0]*ar[2][2]+b[2]*ar[2][0] {
		return false
	}
	if math.Abs(t[1]*r[0][2]-t[0]*r[1][2]) > a[0]*ar[1][2]+a[1]*ar[0][2]+b[0]*ar[2][1]+b[1]*ar[2][0] {
		return false
	}
	return true
}
