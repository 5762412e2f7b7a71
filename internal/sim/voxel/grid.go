package voxel

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

// Grid is a rigid body of blocks laid out on an integer lattice.
type Grid struct {
	id       string
	cellSize float64
	pos      mgl64.Vec3
	rot      mgl64.Quat

	store  *chunkStore
	blocks map[*Block]struct{}
	min    geom.Vec3i
	max    geom.Vec3i

	closing   bool
	projector *Projector
}

func NewGrid(id string, cellSize float64, pos mgl64.Vec3, rot mgl64.Quat) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	g := &Grid{
		id:       id,
		cellSize: cellSize,
		pos:      pos,
		rot:      rot.Normalize(),
		store:    newChunkStore(),
		blocks:   map[*Block]struct{}{},
	}
	g.recomputeBounds()
	return g
}

func (g *Grid) ID() string                       { return g.id }
func (g *Grid) CellSize() float64                { return g.cellSize }
func (g *Grid) Orientation() mgl64.Quat          { return g.rot }
func (g *Grid) Position() mgl64.Vec3             { return g.pos }
func (g *Grid) Closing() bool                    { return g.closing }
func (g *Grid) SetClosing(v bool)                { g.closing = v }
func (g *Grid) Len() int                         { return len(g.blocks) }
func (g *Grid) Bounds() (geom.Vec3i, geom.Vec3i) { return g.min, g.max }

func (g *Grid) Projector() host.Projector {
	if g.projector == nil {
		return nil
	}
	return g.projector
}

// SetPose moves the grid. Not safe during a scan.
func (g *Grid) SetPose(pos mgl64.Vec3, rot mgl64.Quat) {
	g.pos = pos
	g.rot = rot.Normalize()
}

func (g *Grid) WorldToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return g.rot.Conjugate().Rotate(p.Sub(g.pos)).Mul(1 / g.cellSize)
}

func (g *Grid) DirectionToLocal(d mgl64.Vec3) mgl64.Vec3 {
	return g.rot.Conjugate().Rotate(d)
}

func (g *Grid) LocalToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return g.pos.Add(g.rot.Rotate(p.Mul(g.cellSize)))
}

func (g *Grid) Occupant(cell geom.Vec3i) (host.Block, bool) {
	b := g.store.get(cell)
	if b == nil {
		return nil, false
	}
	return b, true
}

// Block is Occupant without the interface conversion.
func (g *Grid) Block(cell geom.Vec3i) *Block { return g.store.get(cell) }

func (g *Grid) CastCells(start, end mgl64.Vec3) []geom.Vec3i {
	return geom.TraverseCells(g.WorldToLocal(start), g.WorldToLocal(end))
}

// Place puts b with its minimum corner at cell. It fails if any spanned cell is taken or b
// already belongs to a grid.
func (g *Grid) Place(b *Block, cell geom.Vec3i) bool {
	if b == nil || b.grid != nil {
		return false
	}
	b.min = cell
	cells := b.cells()
	for _, c := range cells {
		if g.store.get(c) != nil {
			return false
		}
	}
	for _, c := range cells {
		g.store.set(c, b)
	}
	b.grid = g
	first := len(g.blocks) == 0
	g.blocks[b] = struct{}{}
	lo, hi := cells[0], cells[len(cells)-1]
	if first {
		g.min, g.max = lo, hi
	} else {
		g.min = geom.MinVec3i(g.min, lo)
		g.max = geom.MaxVec3i(g.max, hi)
	}
	return true
}

func (g *Grid) Remove(b *Block) {
	if b == nil || b.grid != g {
		return
	}
	for _, c := range b.cells() {
		if g.store.get(c) == b {
			g.store.set(c, nil)
		}
	}
	delete(g.blocks, b)
	b.grid = nil
	b.closing = true
	g.recomputeBounds()
}

// Blocks lists blocks ordered by their minimum cell.
func (g *Grid) Blocks() []*Block {
	out := make([]*Block, 0, len(g.blocks))
	for b := range g.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].min.Less(out[j].min) })
	return out
}

func (g *Grid) recomputeBounds() {
	if len(g.blocks) == 0 {
		// Empty range: every loop over it runs zero times.
		g.min = geom.Vec3i{}
		g.max = geom.Vec3i{X: -1, Y: -1, Z: -1}
		return
	}
	first := true
	for b := range g.blocks {
		cells := b.cells()
		lo, hi := cells[0], cells[len(cells)-1]
		if first {
			g.min, g.max = lo, hi
			first = false
			continue
		}
		g.min = geom.MinVec3i(g.min, lo)
		g.max = geom.MaxVec3i(g.max, hi)
	}
}

// WorldBounds is the world-space box enclosing every occupied cell.
func (g *Grid) WorldBounds() (geom.AABB, bool) {
	if len(g.blocks) == 0 {
		return geom.AABB{}, false
	}
	local := geom.AABB{
		Min: g.min.Vec3().Sub(mgl64.Vec3{0.5, 0.5, 0.5}),
		Max: g.max.Vec3().Add(mgl64.Vec3{0.5, 0.5, 0.5}),
	}
	box := host.LocalBox(g, local)
	return box.AABB(), true
}
