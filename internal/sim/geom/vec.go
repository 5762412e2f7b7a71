package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3i is an integer grid cell coordinate. Cell (x,y,z) spans [x-0.5, x+0.5] on each axis
// in grid-local scaled space.
type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3i) Vec3() mgl64.Vec3 { return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)} }

// Less orders cells x, then y, then z.
func (v Vec3i) Less(o Vec3i) bool {
	if v.X != o.X {
		return v.X < o.X
	}
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	return v.Z < o.Z
}

func MaxVec3i(a, b Vec3i) Vec3i {
	return Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
}

func MinVec3i(a, b Vec3i) Vec3i {
	return Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
}

// Round maps a scaled local point to the cell containing it (half away from zero).
func Round(v mgl64.Vec3) Vec3i {
	return Vec3i{X: int(math.Round(v[0])), Y: int(math.Round(v[1])), Z: int(math.Round(v[2]))}
}

// Contains reports whether c lies within the inclusive box [lo, hi].
func Contains(lo, hi, c Vec3i) bool {
	return c.X >= lo.X && c.X <= hi.X &&
		c.Y >= lo.Y && c.Y <= hi.Y &&
		c.Z >= lo.Z && c.Z <= hi.Z
}

func Clamp(v, lo, hi mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		mgl64.Clamp(v[0], lo[0], hi[0]),
		mgl64.Clamp(v[1], lo[1], hi[1]),
		mgl64.Clamp(v[2], lo[2], hi[2]),
	}
}

func Abs(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])}
}

func LenSq(v mgl64.Vec3) float64 { return v.Dot(v) }

func DistSq(a, b mgl64.Vec3) float64 { return LenSq(a.Sub(b)) }

// ProjectOnVector returns the component of v along dir. dir need not be normalized;
// a zero dir yields the zero vector.
func ProjectOnVector(v, dir mgl64.Vec3) mgl64.Vec3 {
	d := dir.Dot(dir)
	if d == 0 {
		return mgl64.Vec3{}
	}
	return dir.Mul(v.Dot(dir) / d)
}

// ProjectOnPlane removes the component of v along the plane normal n.
func ProjectOnPlane(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(ProjectOnVector(v, n))
}

// CeilLayer converts a distance metric to a proximity layer.
func CeilLayer(metric float64) int {
	if metric <= 0 || math.IsNaN(metric) {
		return 0
	}
	return int(math.Ceil(metric))
}
