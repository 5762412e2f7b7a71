package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSphereHit(t *testing.T) {
	centre := mgl64.Vec3{0, 0, 0}
	if ok, d := SphereHit(Vec3i{}, centre, 2); !ok || d != 0 {
		t.Fatalf("expected centre cell hit with metric 0, got ok=%v d=%v", ok, d)
	}
	if ok, d := SphereHit(Vec3i{X: 2}, centre, 2); !ok || d != 2.25 {
		t.Fatalf("expected (2,0,0) hit with metric 2.25, got ok=%v d=%v", ok, d)
	}
	if ok, _ := SphereHit(Vec3i{X: 3}, centre, 2); ok {
		t.Fatalf("expected (3,0,0) outside radius 2")
	}
}

func TestCylinderHit(t *testing.T) {
	c := NewCylinder(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 1, 4)
	cases := []struct {
		cell Vec3i
		want bool
	}{
		{Vec3i{X: 3}, true},
		{Vec3i{X: 1, Y: 1}, true},
		{Vec3i{X: 6}, false},
		{Vec3i{Y: 2}, false},
		{Vec3i{X: 2, Z: 3}, false},
	}
	for _, tc := range cases {
		if got, _ := c.Hit(tc.cell); got != tc.want {
			t.Fatalf("cell %v: expected hit=%v, got %v", tc.cell, tc.want, got)
		}
	}
	if _, d := c.Hit(Vec3i{X: 1, Y: 1}); d != 0.25 {
		t.Fatalf("expected radial metric 0.25, got %v", d)
	}
}

func TestOrientationForwardUp(t *testing.T) {
	m := Orientation(mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, 1, 0})
	if !m.ApproxEqual(mgl64.Ident3()) {
		t.Fatalf("expected identity basis, got %v", m)
	}
	// Degenerate up still yields an orthonormal basis.
	m = Orientation(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0})
	for i := 0; i < 3; i++ {
		if l := m.Col(i).Len(); math.Abs(l-1) > 1e-9 {
			t.Fatalf("axis %d not unit: %v", i, l)
		}
	}
	if d := m.Col(0).Dot(m.Col(1)); math.Abs(d) > 1e-9 {
		t.Fatalf("axes not orthogonal: %v", d)
	}
}

func TestOBBIntersectsCells(t *testing.T) {
	box := OBB{Center: mgl64.Vec3{}, Axes: mgl64.Ident3(), HalfExtent: mgl64.Vec3{1, 1, 1}}
	if ok, _ := CuboidHit(Vec3i{X: 1}, box); !ok {
		t.Fatalf("expected adjacent cell to overlap")
	}
	if ok, _ := CuboidHit(Vec3i{X: 3}, box); ok {
		t.Fatalf("expected far cell to be disjoint")
	}

	rot := OBB{
		Center:     mgl64.Vec3{},
		Axes:       mgl64.Rotate3DY(math.Pi / 4),
		HalfExtent: mgl64.Vec3{2, 0.5, 0.5},
	}
	if ok, _ := CuboidHit(Vec3i{X: 1, Z: -1}, rot); !ok {
		t.Fatalf("expected cell along rotated axis to overlap")
	}
	if ok, _ := CuboidHit(Vec3i{X: 1, Z: 1}, rot); ok {
		t.Fatalf("expected cell beside rotated box to be disjoint")
	}
	h := rot.AABBHalfExtents()
	want := math.Sqrt2 / 2 * 2.5
	if math.Abs(h[0]-want) > 1e-9 || math.Abs(h[2]-want) > 1e-9 || math.Abs(h[1]-0.5) > 1e-9 {
		t.Fatalf("unexpected AABB half extents %v", h)
	}
	for _, p := range rot.Corners() {
		if !rot.ContainsPoint(p) {
			t.Fatalf("corner %v not contained", p)
		}
	}
}

func TestTraverseCellsStraight(t *testing.T) {
	got := TraverseCells(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{3, 0, 0})
	if len(got) != 4 {
		t.Fatalf("expected 4 cells, got %v", got)
	}
	for i, c := range got {
		if c != (Vec3i{X: i}) {
			t.Fatalf("cell %d: expected (%d,0,0), got %v", i, i, c)
		}
	}
}

func TestTraverseCellsDiagonalIsContiguous(t *testing.T) {
	got := TraverseCells(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 0})
	if len(got) != 5 {
		t.Fatalf("expected 5 cells, got %v", got)
	}
	if got[len(got)-1] != (Vec3i{X: 2, Y: 2}) {
		t.Fatalf("expected traversal to end at (2,2,0), got %v", got[len(got)-1])
	}
	for i := 1; i < len(got); i++ {
		d := got[i].Sub(got[i-1])
		steps := abs(d.X) + abs(d.Y) + abs(d.Z)
		if steps != 1 {
			t.Fatalf("cells %v -> %v are not face neighbours", got[i-1], got[i])
		}
	}
}

func TestCeilLayerMonotonic(t *testing.T) {
	prev := -1
	for _, m := range []float64{0, 0.1, 0.9, 1, 1.0001, 2.25, 4, 9.5} {
		l := CeilLayer(m)
		if l < prev {
			t.Fatalf("layer decreased at metric %v: %d < %d", m, l, prev)
		}
		prev = l
	}
	if CeilLayer(3.0) != 3 {
		t.Fatalf("expected ceil(3.0)=3")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
