package mathx

import (
	"testing"

	"toolcore.dev/internal/sim/geom"
)

func TestFloorDivMod(t *testing.T) {
	cases := []struct{ a, q, m int }{
		{0, 0, 0}, {15, 0, 15}, {16, 1, 0}, {-1, -1, 15}, {-16, -1, 0}, {-17, -2, 15},
	}
	for _, tc := range cases {
		if got := FloorDiv(tc.a, 16); got != tc.q {
			t.Fatalf("FloorDiv(%d,16): expected %d, got %d", tc.a, tc.q, got)
		}
		if got := Mod(tc.a, 16); got != tc.m {
			t.Fatalf("Mod(%d,16): expected %d, got %d", tc.a, tc.m, got)
		}
	}
}

func TestHash3Deterministic(t *testing.T) {
	c := geom.Vec3i{X: -3, Y: 7, Z: 2}
	if Hash3(42, c) != Hash3(42, c) {
		t.Fatalf("expected stable hash")
	}
	if Hash3(42, c) == Hash3(43, c) {
		t.Fatalf("expected seed to change hash")
	}
	if Manhattan(c, geom.Vec3i{}) != 12 {
		t.Fatalf("expected manhattan 12, got %d", Manhattan(c, geom.Vec3i{}))
	}
}
