package voxel

import (
	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

// Projector owns a grid of ghost blocks overlaid on a target grid.
type Projector struct {
	grid   *Grid
	target *Grid
	colour uint32
}

// NewProjection creates a ghost grid aligned with target and attaches a projector to it.
func NewProjection(id string, target *Grid, colour uint32) (*Grid, *Projector) {
	g := NewGrid(id, target.cellSize, target.pos, target.rot)
	p := &Projector{grid: g, target: target, colour: colour}
	g.projector = p
	return g, p
}

func (p *Projector) ColorMask() uint32 { return p.colour }

func (p *Projector) Target() host.Grid { return p.target }

// Grid is the ghost grid.
func (p *Projector) Grid() *Grid { return p.grid }

// CanBuild reports whether every cell the ghost would occupy in the target grid is free.
func (p *Projector) CanBuild(ghost host.Block) bool {
	b, ok := ghost.(*Block)
	if !ok || b.grid != p.grid || b.closing {
		return false
	}
	for _, c := range b.cells() {
		if p.target.store.get(p.targetCell(c)) != nil {
			return false
		}
	}
	return true
}

func (p *Projector) targetCell(c geom.Vec3i) geom.Vec3i {
	world := p.grid.LocalToWorld(c.Vec3())
	return geom.Round(p.target.WorldToLocal(world))
}

// Refresh hides ghosts whose target cells are already built and shows the rest.
func (p *Projector) Refresh() {
	for _, b := range p.grid.Blocks() {
		if p.CanBuild(b) {
			b.dithering = -0.25
		} else {
			b.dithering = 1
		}
	}
}

// Align snaps the ghost grid back onto the target.
func (p *Projector) Align() {
	p.grid.SetPose(p.target.pos, p.target.rot)
}

// Offset shifts the projection by whole target cells.
func (p *Projector) Offset(d geom.Vec3i) {
	shift := p.target.rot.Rotate(d.Vec3().Mul(p.target.cellSize))
	p.grid.SetPose(p.target.pos.Add(shift), p.target.rot)
}

var _ host.Projector = (*Projector)(nil)
