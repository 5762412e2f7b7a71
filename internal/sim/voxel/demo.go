package voxel

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/inventory"
	"toolcore.dev/internal/sim/mathx"
)

// Block types used by the demo world and the tests.
var (
	ArmorDef = &Def{
		ID:            "armor",
		Components:    []host.Component{{Kind: "steel", Count: 8}},
		MaxIntegrity:  80,
		IntegrityRate: 4,
	}
	FrameDef = &Def{
		ID: "frame",
		Components: []host.Component{
			{Kind: "steel", Count: 4},
			{Kind: "motor", Count: 1},
			{Kind: "glass", Count: 2},
		},
		MaxIntegrity:     70,
		IntegrityRate:    2,
		DisassembleRatio: 2,
	}
	CrateDef = &Def{
		ID:                "crate",
		Components:        []host.Component{{Kind: "steel", Count: 6}, {Kind: "motor", Count: 1}},
		MaxIntegrity:      70,
		IntegrityRate:     2,
		InventoryCapacity: 400,
	}
	LuxuryDef = &Def{
		ID:           "luxury_panel",
		Components:   []host.Component{{Kind: "steel", Count: 2}, {Kind: "glass", Count: 4}},
		MaxIntegrity: 60,
		ContentGates: []string{"deluxe-pack"},
	}
)

// Demo is a small self-contained scene: a hull with damaged and unfinished blocks, a
// projection of blocks still to build on top of it and a crate feeding a conveyor network.
type Demo struct {
	World     *World
	Hull      *Grid
	Ghosts    *Grid
	Projector *Projector
	Crate     *Block
	Network   *inventory.Network
	Mutator   *Mutator
}

// BuildDemo lays out a size×2×size hull. The seed picks which blocks start damaged.
func BuildDemo(seed int64, size int) *Demo {
	if size < 2 {
		size = 2
	}
	w := NewWorld()
	hull := NewGrid("hull", 1, mgl64.Vec3{}, mgl64.QuatIdent())
	for x := 0; x < size; x++ {
		for z := 0; z < size; z++ {
			for y := 0; y < 2; y++ {
				c := geom.Vec3i{X: x, Y: y, Z: z}
				var b *Block
				switch h := mathx.Hash3(seed, c); h % 6 {
				case 0:
					b = NewPartial(ArmorDef, 0.25)
				case 1:
					b = NewComplete(ArmorDef)
					b.SetDeformed(true)
				case 2:
					b = NewPartial(FrameDef, 0.5)
				default:
					b = NewComplete(ArmorDef)
				}
				hull.Place(b, c)
			}
		}
	}

	crate := NewComplete(CrateDef)
	hull.Place(crate, geom.Vec3i{X: -1, Y: 0, Z: 0})
	crate.Inventory.Add("steel", 300)
	crate.Inventory.Add("motor", 20)
	crate.Inventory.Add("glass", 40)

	ghosts, proj := NewProjection("hull/projection", hull, 0)
	for x := 0; x < size; x++ {
		for z := 0; z < 2 && z < size; z++ {
			def := ArmorDef
			if x == size-1 && z == 1 {
				def = LuxuryDef
			}
			ghosts.Place(NewGhost(def), geom.Vec3i{X: x, Y: 2, Z: z})
		}
	}

	w.Add(hull)
	w.Add(ghosts)

	net := inventory.NewNetwork(geom.Vec3i{}, 0)
	net.Attach(&inventory.Source{ID: fmt.Sprintf("%s/crate", hull.id), Pos: crate.min, Inv: crate.Inventory})

	return &Demo{
		World:     w,
		Hull:      hull,
		Ghosts:    ghosts,
		Projector: proj,
		Crate:     crate,
		Network:   net,
		Mutator:   NewMutator(),
	}
}

// Defs indexes the demo block types by id.
func Defs() map[string]*Def {
	return map[string]*Def{
		ArmorDef.ID:  ArmorDef,
		FrameDef.ID:  FrameDef,
		CrateDef.ID:  CrateDef,
		LuxuryDef.ID: LuxuryDef,
	}
}
