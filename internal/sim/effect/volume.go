package effect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

type Shape uint8

const (
	ShapeSphere Shape = iota + 1
	ShapeCylinder
	ShapeCuboid
	ShapeLine
	ShapeRay
)

// RayEpsilon nudges the ray's terminal point past the surface it reached.
const RayEpsilon = 0.01

var (
	ErrInvalidShape  = errors.New("effect: invalid shape")
	ErrInvalidExtent = errors.New("effect: invalid extent")
)

func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	case ShapeCuboid:
		return "cuboid"
	case ShapeLine:
		return "line"
	case ShapeRay:
		return "ray"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sphere":
		return ShapeSphere, nil
	case "cylinder":
		return ShapeCylinder, nil
	case "cuboid", "box":
		return ShapeCuboid, nil
	case "line":
		return ShapeLine, nil
	case "ray":
		return ShapeRay, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidShape, s)
}

// Volume is the region a tool affects this tick. Only the fields of the active Shape are
// meaningful:
//
//	Sphere   Radius
//	Cylinder Radius, Length
//	Cuboid   HalfExtent (oriented by Forward/Up)
//	Line     Length (start = Position, end = Position + Forward*Length)
//	Ray      Length
//
// BoundingRadius bounds the sphere and cylinder candidate boxes.
type Volume struct {
	Shape Shape

	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Up       mgl64.Vec3

	Radius         float64
	Length         float64
	HalfExtent     mgl64.Vec3
	BoundingRadius float64
}

func Sphere(pos mgl64.Vec3, radius float64) Volume {
	return Volume{
		Shape:          ShapeSphere,
		Position:       pos,
		Forward:        mgl64.Vec3{0, 0, -1},
		Up:             mgl64.Vec3{0, 1, 0},
		Radius:         radius,
		BoundingRadius: radius,
	}
}

func Cylinder(pos, forward mgl64.Vec3, radius, length float64) Volume {
	forward = unit(forward)
	return Volume{
		Shape:          ShapeCylinder,
		Position:       pos,
		Forward:        forward,
		Up:             anyUp(forward),
		Radius:         radius,
		Length:         length,
		BoundingRadius: CylinderBoundingRadius(radius, length),
	}
}

func Cuboid(pos, forward, up, halfExtent mgl64.Vec3) Volume {
	return Volume{
		Shape:          ShapeCuboid,
		Position:       pos,
		Forward:        forward,
		Up:             up,
		HalfExtent:     halfExtent,
		BoundingRadius: halfExtent.Len(),
	}
}

func Line(pos, forward mgl64.Vec3, length float64) Volume {
	forward = unit(forward)
	return Volume{
		Shape:          ShapeLine,
		Position:       pos,
		Forward:        forward,
		Up:             anyUp(forward),
		Length:         length,
		BoundingRadius: length,
	}
}

func Ray(pos, forward mgl64.Vec3, length float64) Volume {
	forward = unit(forward)
	return Volume{
		Shape:          ShapeRay,
		Position:       pos,
		Forward:        forward,
		Up:             anyUp(forward),
		Length:         length,
		BoundingRadius: length,
	}
}

// CylinderBoundingRadius encloses a cylinder anchored at one end cap.
func CylinderBoundingRadius(radius, length float64) float64 {
	return mgl64.Vec2{radius, length}.Len()
}

// End is the far end of a line segment.
func (v Volume) End() mgl64.Vec3 { return v.Position.Add(v.Forward.Mul(v.Length)) }

// RayPoint is the single world point probed by a ray.
func (v Volume) RayPoint() mgl64.Vec3 { return v.Position.Add(v.Forward.Mul(v.Length + RayEpsilon)) }

func (v Volume) Validate() error {
	if v.Forward.Dot(v.Forward) == 0 {
		return fmt.Errorf("%w: zero forward", ErrInvalidExtent)
	}
	switch v.Shape {
	case ShapeSphere:
		if v.Radius <= 0 {
			return fmt.Errorf("%w: sphere radius %v", ErrInvalidExtent, v.Radius)
		}
	case ShapeCylinder:
		if v.Radius <= 0 || v.Length <= 0 {
			return fmt.Errorf("%w: cylinder radius %v length %v", ErrInvalidExtent, v.Radius, v.Length)
		}
	case ShapeCuboid:
		if v.HalfExtent[0] <= 0 || v.HalfExtent[1] <= 0 || v.HalfExtent[2] <= 0 {
			return fmt.Errorf("%w: cuboid half extent %v", ErrInvalidExtent, v.HalfExtent)
		}
	case ShapeLine, ShapeRay:
		if v.Length <= 0 {
			return fmt.Errorf("%w: %s length %v", ErrInvalidExtent, v.Shape, v.Length)
		}
	default:
		return fmt.Errorf("%w: %d", ErrInvalidShape, uint8(v.Shape))
	}
	return nil
}

// unit normalizes v. A zero vector is returned as is for Validate to reject.
func unit(v mgl64.Vec3) mgl64.Vec3 {
	if v.Dot(v) == 0 {
		return v
	}
	return v.Normalize()
}

func anyUp(forward mgl64.Vec3) mgl64.Vec3 {
	if forward.Dot(forward) > 0 {
		f := forward.Normalize()
		if f[1] > 0.9 || f[1] < -0.9 {
			return mgl64.Vec3{1, 0, 0}
		}
	}
	return mgl64.Vec3{0, 1, 0}
}
