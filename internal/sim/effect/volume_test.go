package effect

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestParseShape(t *testing.T) {
	for in, want := range map[string]Shape{
		"sphere":   ShapeSphere,
		"Cylinder": ShapeCylinder,
		" box ":    ShapeCuboid,
		"line":     ShapeLine,
		"RAY":      ShapeRay,
	} {
		got, err := ParseShape(in)
		if err != nil || got != want {
			t.Fatalf("ParseShape(%q): expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParseShape("cone"); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	fwd := mgl64.Vec3{1, 0, 0}
	ok := []Volume{
		Sphere(mgl64.Vec3{}, 2),
		Cylinder(mgl64.Vec3{}, fwd, 1, 3),
		Cuboid(mgl64.Vec3{}, fwd, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 1, 1}),
		Line(mgl64.Vec3{}, fwd, 5),
		Ray(mgl64.Vec3{}, fwd, 3),
	}
	for _, v := range ok {
		if err := v.Validate(); err != nil {
			t.Fatalf("%s: unexpected error %v", v.Shape, err)
		}
	}

	bad := []Volume{
		Sphere(mgl64.Vec3{}, 0),
		Cylinder(mgl64.Vec3{}, fwd, 1, 0),
		Cuboid(mgl64.Vec3{}, fwd, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 0, 1}),
		Ray(mgl64.Vec3{}, mgl64.Vec3{}, 3),
	}
	for _, v := range bad {
		if err := v.Validate(); !errors.Is(err, ErrInvalidExtent) {
			t.Fatalf("%s: expected ErrInvalidExtent, got %v", v.Shape, err)
		}
	}
	if err := (Volume{Forward: fwd}).Validate(); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape for zero shape, got %v", err)
	}
}

func TestRayPointAndEnd(t *testing.T) {
	v := Ray(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, -1}, 3)
	p := v.RayPoint()
	if math.Abs(p[2]-(-3-RayEpsilon)) > 1e-12 || p[0] != 1 {
		t.Fatalf("unexpected ray point %v", p)
	}
	l := Line(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0}, 4)
	if l.End() != (mgl64.Vec3{0, 4, 0}) {
		t.Fatalf("unexpected line end %v", l.End())
	}
	if l.Up != (mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("expected vertical line to pick x as up, got %v", l.Up)
	}
}

func TestConstructorsNormalizeForward(t *testing.T) {
	r := Ray(mgl64.Vec3{}, mgl64.Vec3{0, 0, -5}, 2)
	if d := r.RayPoint().Len(); math.Abs(d-(2+RayEpsilon)) > 1e-12 {
		t.Fatalf("expected ray point at %v, got %v", 2+RayEpsilon, d)
	}
	l := Line(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{3, 4, 0}, 10)
	if end := l.End(); end.Sub(mgl64.Vec3{7, 8, 0}).Len() > 1e-12 {
		t.Fatalf("expected line end {7 8 0}, got %v", end)
	}
	c := Cylinder(mgl64.Vec3{}, mgl64.Vec3{2, 0, 0}, 1, 3)
	if c.Forward != (mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("expected unit cylinder axis, got %v", c.Forward)
	}
	if err := Ray(mgl64.Vec3{}, mgl64.Vec3{}, 2).Validate(); !errors.Is(err, ErrInvalidExtent) {
		t.Fatalf("expected ErrInvalidExtent for zero forward, got %v", err)
	}
}
