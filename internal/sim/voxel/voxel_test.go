package voxel

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/inventory"
)

func newTestGrid() *Grid {
	return NewGrid("g", 1, mgl64.Vec3{}, mgl64.QuatIdent())
}

func TestPlaceRemoveAndBounds(t *testing.T) {
	g := newTestGrid()
	if lo, hi := g.Bounds(); hi.X >= lo.X {
		t.Fatalf("expected empty bounds for empty grid, got %v..%v", lo, hi)
	}
	a := NewComplete(ArmorDef)
	b := NewComplete(ArmorDef)
	if !g.Place(a, geom.Vec3i{X: -20, Y: 3, Z: 5}) || !g.Place(b, geom.Vec3i{X: 4, Y: -1, Z: 0}) {
		t.Fatalf("expected placements to succeed")
	}
	if g.Place(NewComplete(ArmorDef), geom.Vec3i{X: 4, Y: -1, Z: 0}) {
		t.Fatalf("expected placement on an occupied cell to fail")
	}
	lo, hi := g.Bounds()
	if lo != (geom.Vec3i{X: -20, Y: -1, Z: 0}) || hi != (geom.Vec3i{X: 4, Y: 3, Z: 5}) {
		t.Fatalf("unexpected bounds %v..%v", lo, hi)
	}
	if occ, ok := g.Occupant(geom.Vec3i{X: -20, Y: 3, Z: 5}); !ok || occ != host.Block(a) {
		t.Fatalf("expected occupant lookup across negative chunk coords")
	}

	g.Remove(a)
	if !a.Closing() || a.Grid() != nil {
		t.Fatalf("expected removed block to be closing and detached")
	}
	lo, hi = g.Bounds()
	if lo != hi || lo != (geom.Vec3i{X: 4, Y: -1, Z: 0}) {
		t.Fatalf("expected bounds to shrink to remaining block, got %v..%v", lo, hi)
	}
}

func TestMultiCellBlockOccupiesSpan(t *testing.T) {
	g := newTestGrid()
	big := &Def{ID: "big", Components: []host.Component{{Kind: "steel", Count: 1}}, MaxIntegrity: 10, Size: geom.Vec3i{X: 2, Y: 1, Z: 2}}
	b := NewComplete(big)
	g.Place(b, geom.Vec3i{})
	for _, c := range []geom.Vec3i{{}, {X: 1}, {Z: 1}, {X: 1, Z: 1}} {
		if g.Block(c) != b {
			t.Fatalf("expected cell %v to hold the multi-cell block", c)
		}
	}
	if len(g.store.loadedChunks()) != 1 {
		t.Fatalf("expected a single loaded chunk")
	}
	g.Remove(b)
	if len(g.store.loadedChunks()) != 0 {
		t.Fatalf("expected empty chunk to be released")
	}
}

func TestTransformsRoundTrip(t *testing.T) {
	rot := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	g := NewGrid("r", 2.5, mgl64.Vec3{10, 0, -4}, rot)
	p := mgl64.Vec3{3, 1, 7}
	back := g.LocalToWorld(g.WorldToLocal(p))
	if !back.ApproxEqualThreshold(p, 1e-9) {
		t.Fatalf("expected round trip to %v, got %v", p, back)
	}
	// One cell along local x is 2.5 world units along the rotated axis.
	w := g.LocalToWorld(mgl64.Vec3{1, 0, 0})
	if math.Abs(w.Sub(g.Position()).Len()-2.5) > 1e-9 {
		t.Fatalf("expected cell size scaling, got %v", w)
	}
}

func TestWeldMountsFromInventory(t *testing.T) {
	g := newTestGrid()
	b := NewPartial(ArmorDef, 0.25) // 20 of 80, 2 of 8 steel
	g.Place(b, geom.Vec3i{})
	m := NewMutator()
	inv := inventory.FromItems(0, map[string]int{"steel": 1})

	if miss := b.MissingComponents(nil); len(miss) != 1 || miss[0].Count != 6 {
		t.Fatalf("expected 6 steel missing, got %v", miss)
	}
	// 10 work * rate 4 = 40 integrity wanted, but only one more steel (10 integrity) is available.
	m.IncreaseCompletion(b, 10, 7, inv)
	if b.Integrity() != 30 {
		t.Fatalf("expected integrity capped at 30, got %v", b.Integrity())
	}
	if inv.Amount("steel") != 0 || b.Owner != 7 {
		t.Fatalf("expected steel consumed and owner set, got steel=%d owner=%d", inv.Amount("steel"), b.Owner)
	}
	if m.CanContinueBuild(b, inv) {
		t.Fatalf("expected build to stall without stock")
	}
	inv.Add("steel", 10)
	if !m.CanContinueBuild(b, inv) {
		t.Fatalf("expected build to continue with stock")
	}
	m.IncreaseCompletion(b, 100, 7, inv)
	if !b.FullIntegrity() || inv.Amount("steel") != 5 {
		t.Fatalf("expected full block using 5 steel, got integrity=%v steel=%d", b.Integrity(), inv.Amount("steel"))
	}
}

func TestGrindDismountsAndRemoves(t *testing.T) {
	g := newTestGrid()
	b := NewComplete(CrateDef)
	b.Inventory.Add("ore", 5)
	g.Place(b, geom.Vec3i{})
	m := NewMutator()
	inv := inventory.New(0)

	var hooked float64
	m.BeforeDamage = func(_ *Block, amount float64, attacker string) float64 {
		if attacker != "grinder" {
			t.Fatalf("expected attacker to be passed through, got %q", attacker)
		}
		hooked = amount
		return amount
	}
	m.ApplyDamage(b, 20, "grinder", inv) // 40 of 70 integrity removed
	if hooked != 20 {
		t.Fatalf("expected damage hook to see 20, got %v", hooked)
	}
	if b.Integrity() != 30 || inv.Amount("motor") != 1 {
		t.Fatalf("expected integrity 30 and motor dismounted first, got %v motor=%d", b.Integrity(), inv.Amount("motor"))
	}
	m.ApplyDamage(b, 100, "grinder", inv)
	if !b.FullyDismounted() {
		t.Fatalf("expected block fully dismounted")
	}
	m.DisassembleAndRemove(b, inv)
	if g.Len() != 0 || inv.Amount("ore") != 5 || inv.Amount("steel") != 6 {
		t.Fatalf("expected block removed with contents recovered, got len=%d ore=%d steel=%d", g.Len(), inv.Amount("ore"), inv.Amount("steel"))
	}
}

func TestConstructGhost(t *testing.T) {
	hull := newTestGrid()
	hull.Place(NewComplete(ArmorDef), geom.Vec3i{})
	ghosts, p := NewProjection("p", hull, 0xff)
	ghost := NewGhost(ArmorDef)
	ghosts.Place(ghost, geom.Vec3i{Y: 1})
	blocked := NewGhost(ArmorDef)
	ghosts.Place(blocked, geom.Vec3i{})

	if p.CanBuild(blocked) {
		t.Fatalf("expected ghost over an existing block to be unbuildable")
	}
	if !p.CanBuild(ghost) {
		t.Fatalf("expected ghost over free cell to be buildable")
	}
	if ghost.FullyDismounted() {
		t.Fatalf("ghosts are never fully dismounted")
	}

	m := NewMutator()
	nb, ok := m.ConstructGhost(ghost, 3, 4)
	if !ok {
		t.Fatalf("expected construction to succeed")
	}
	built := nb.(*Block)
	if hull.Block(geom.Vec3i{Y: 1}) != built || built.Integrity() != 10 || built.BuiltBy != 4 {
		t.Fatalf("unexpected built block: integrity=%v builtBy=%d", built.Integrity(), built.BuiltBy)
	}
	if ghosts.Block(geom.Vec3i{Y: 1}) != nil {
		t.Fatalf("expected ghost to be removed")
	}
	p.Refresh()
	if blocked.Dithering() != 1 {
		t.Fatalf("expected refresh to hide the blocked ghost")
	}
}

func TestGridsNear(t *testing.T) {
	w := NewWorld()
	near := NewGrid("near", 1, mgl64.Vec3{}, mgl64.QuatIdent())
	near.Place(NewComplete(ArmorDef), geom.Vec3i{})
	far := NewGrid("far", 1, mgl64.Vec3{100, 0, 0}, mgl64.QuatIdent())
	far.Place(NewComplete(ArmorDef), geom.Vec3i{})
	empty := NewGrid("empty", 1, mgl64.Vec3{}, mgl64.QuatIdent())
	w.Add(near)
	w.Add(far)
	w.Add(empty)

	got := w.GridsNear(mgl64.Vec3{2, 0, 0}, 2)
	if len(got) != 1 || got[0].ID() != "near" {
		t.Fatalf("expected only the near grid, got %d grids", len(got))
	}
	w.Remove("near")
	if len(w.GridsNear(mgl64.Vec3{2, 0, 0}, 2)) != 0 || !near.Closing() {
		t.Fatalf("expected removed grid to be closing and excluded")
	}
}

func TestBuildDemo(t *testing.T) {
	d := BuildDemo(7, 4)
	if d.Hull.Len() != 4*4*2+1 {
		t.Fatalf("expected 33 hull blocks, got %d", d.Hull.Len())
	}
	if d.Ghosts.Len() != 8 {
		t.Fatalf("expected 8 ghosts, got %d", d.Ghosts.Len())
	}
	for _, gb := range d.Ghosts.Blocks() {
		if !d.Projector.CanBuild(gb) {
			t.Fatalf("expected demo ghost at %v to be buildable", gb.Cell())
		}
	}
	if d.Crate.Inventory.Amount("steel") != 300 {
		t.Fatalf("expected stocked crate")
	}
}

func TestRestoreClipsState(t *testing.T) {
	b := NewComplete(FrameDef)
	b.Restore(500, []int{9, 0})
	if b.Integrity() != FrameDef.MaxIntegrity {
		t.Fatalf("expected integrity clipped to %v, got %v", FrameDef.MaxIntegrity, b.Integrity())
	}
	if got := b.Mounted(); got[0] != 4 || got[1] != 0 || got[2] != 0 {
		t.Fatalf("expected mounted [4 0 0], got %v", got)
	}
	b.Restore(-3, nil)
	if b.Integrity() != 0 || b.Mounted()[0] != 0 {
		t.Fatalf("expected an empty block, got %v %v", b.Integrity(), b.Mounted())
	}
}
