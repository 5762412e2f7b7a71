// Package host declares the collaborators the tool core consumes but does not own: grid
// storage, block state, inventories, conveyor pulls, entitlement lookup, block mutation,
// debug rendering and turret targeting.
//
// Blocks and grids are handles. Identity is interface equality, so implementations should
// use pointer receivers. The core never keeps a handle past the tick it was obtained in,
// except inside a WorkSet, which prunes closed handles before every reuse.
package host

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/geom"
)

type Mode uint8

const (
	ModeWeld Mode = iota + 1
	ModeGrind
)

func (m Mode) String() string {
	switch m {
	case ModeWeld:
		return "weld"
	case ModeGrind:
		return "grind"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weld":
		return ModeWeld, nil
	case "grind":
		return ModeGrind, nil
	}
	return 0, fmt.Errorf("unknown tool mode %q", s)
}

type Component struct {
	Kind  string
	Count int
}

type Grid interface {
	ID() string
	CellSize() float64
	Orientation() mgl64.Quat

	// WorldToLocal maps a world point into grid-local space scaled by 1/CellSize, so that
	// integer coordinates are cell centres.
	WorldToLocal(p mgl64.Vec3) mgl64.Vec3
	DirectionToLocal(d mgl64.Vec3) mgl64.Vec3
	LocalToWorld(p mgl64.Vec3) mgl64.Vec3

	// Bounds is the inclusive cell range currently occupied.
	Bounds() (min, max geom.Vec3i)
	Occupant(cell geom.Vec3i) (Block, bool)
	// CastCells lists, in order, every cell the world segment start->end enters.
	CastCells(start, end mgl64.Vec3) []geom.Vec3i

	Closing() bool
	// Projector is nil for physical grids.
	Projector() Projector
}

type Block interface {
	Grid() Grid
	Cell() geom.Vec3i

	Closing() bool
	FullyDismounted() bool
	FullIntegrity() bool
	Deformed() bool

	Integrity() float64
	MaxIntegrity() float64
	// IntegrityRate converts one unit of tool work into integrity.
	IntegrityRate() float64
	DisassembleRatio() float64

	Dithering() float32
	ColorMask() uint32

	// PrimaryComponent is the first component of the block definition, "" if none.
	PrimaryComponent() string
	// MissingComponents appends what is still needed to finish the block, in definition order.
	MissingComponents(dst []Component) []Component
	ContentGates() []string
}

// Projector owns a grid of ghost blocks that can be built into Target.
type Projector interface {
	ColorMask() uint32
	Target() Grid
	CanBuild(ghost Block) bool
}

type Inventory interface {
	Amount(kind string) int
	// Remove takes up to n items and returns how many were taken.
	Remove(kind string, n int) int
	// Add stores up to n items and returns how many fit.
	Add(kind string, n int) int
	Full() bool
}

// Puller replenishes dst from a connected network and returns the quantity delivered.
type Puller interface {
	Pull(kind string, qty int, dst Inventory) int
}

type Entitlements interface {
	OwnsContent(contentID string, identity uint64) bool
}

// Mutator applies work to blocks. Each call is invoked at most once per block per tick.
type Mutator interface {
	ApplyDamage(b Block, amount float64, attacker string, inv Inventory)
	IncreaseCompletion(b Block, amount float64, owner int64, inv Inventory)
	CanContinueBuild(b Block, inv Inventory) bool
	DisassembleAndRemove(b Block, inv Inventory)
	// ConstructGhost turns a projected ghost into a real block in the projector's target grid.
	ConstructGhost(ghost Block, owner, builtBy int64) (Block, bool)
}

type Turret interface {
	ActiveTarget() Block
	DeselectTarget()
}

type DebugSink interface {
	RecordBox(box geom.OBB, c Colour)
}

// Colour tags debug boxes with the reason a block was (or was not) worked on.
type Colour uint8

const (
	ColourNone Colour = iota
	ColourRed
	ColourWhite
	ColourPink
	ColourYellow
	ColourGold
	ColourBlue
	ColourGreen
	ColourGreenYellow
	ColourLightBlue
)

func (c Colour) String() string {
	switch c {
	case ColourRed:
		return "red"
	case ColourWhite:
		return "white"
	case ColourPink:
		return "pink"
	case ColourYellow:
		return "yellow"
	case ColourGold:
		return "gold"
	case ColourBlue:
		return "blue"
	case ColourGreen:
		return "green"
	case ColourGreenYellow:
		return "greenyellow"
	case ColourLightBlue:
		return "lightblue"
	default:
		return "none"
	}
}

// CellBox returns the world-space box of a grid cell, shrunk slightly so adjacent boxes
// stay visually separate.
func CellBox(g Grid, cell geom.Vec3i) geom.OBB {
	half := g.CellSize()/2 - 0.05
	q := g.Orientation()
	return geom.OBB{
		Center:     g.LocalToWorld(cell.Vec3()),
		Axes:       mgl64.Mat3FromCols(q.Rotate(mgl64.Vec3{1, 0, 0}), q.Rotate(mgl64.Vec3{0, 1, 0}), q.Rotate(mgl64.Vec3{0, 0, 1})),
		HalfExtent: mgl64.Vec3{half, half, half},
	}
}

// LocalBox converts a grid-local scaled box into a world-space debug box.
func LocalBox(g Grid, box geom.AABB) geom.OBB {
	q := g.Orientation()
	return geom.OBB{
		Center:     g.LocalToWorld(box.Center()),
		Axes:       mgl64.Mat3FromCols(q.Rotate(mgl64.Vec3{1, 0, 0}), q.Rotate(mgl64.Vec3{0, 1, 0}), q.Rotate(mgl64.Vec3{0, 0, 1})),
		HalfExtent: box.HalfExtents().Mul(g.CellSize()),
	}
}

// Live reports whether b and its grid can still be worked on.
func Live(b Block) bool {
	if b == nil || b.Closing() || b.FullyDismounted() {
		return false
	}
	g := b.Grid()
	return g != nil && !g.Closing()
}

// ProjectedCell maps a ghost block to the cell it will occupy in the projector's target grid.
func ProjectedCell(ghost Block, p Projector) (Grid, geom.Vec3i) {
	target := p.Target()
	world := ghost.Grid().LocalToWorld(ghost.Cell().Vec3())
	return target, geom.Round(target.WorldToLocal(world))
}
