package voxel

import (
	"math"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/inventory"
)

// Def describes a block type.
type Def struct {
	ID         string
	Components []host.Component

	MaxIntegrity float64
	// IntegrityRate is integrity gained per unit of weld work. 0 means 1.
	IntegrityRate float64
	// DisassembleRatio divides grind work. 0 means 1.
	DisassembleRatio float64

	ContentGates []string
	// Size is the cell span. Zero means a single cell.
	Size geom.Vec3i
	// InventoryCapacity gives placed blocks their own inventory when > 0.
	InventoryCapacity int
}

func (d *Def) span() geom.Vec3i {
	s := d.Size
	if s.X <= 0 {
		s.X = 1
	}
	if s.Y <= 0 {
		s.Y = 1
	}
	if s.Z <= 0 {
		s.Z = 1
	}
	return s
}

func (d *Def) totalUnits() int {
	n := 0
	for _, c := range d.Components {
		n += c.Count
	}
	return n
}

// unit is the integrity one mounted component unit supports.
func (d *Def) unit() float64 {
	n := d.totalUnits()
	if n == 0 {
		return d.MaxIntegrity
	}
	return d.MaxIntegrity / float64(n)
}

func (d *Def) rate() float64 {
	if d.IntegrityRate <= 0 {
		return 1
	}
	return d.IntegrityRate
}

func (d *Def) ratio() float64 {
	if d.DisassembleRatio <= 0 {
		return 1
	}
	return d.DisassembleRatio
}

type Block struct {
	Def *Def

	grid      *Grid
	min       geom.Vec3i
	integrity float64
	mounted   []int
	deformed  bool
	closing   bool
	dithering float32
	colour    uint32

	Inventory *inventory.Inventory
	Owner     int64
	BuiltBy   int64
}

// NewComplete returns a fully built block of def.
func NewComplete(def *Def) *Block {
	b := newBlock(def)
	for i, c := range def.Components {
		b.mounted[i] = c.Count
	}
	b.integrity = def.MaxIntegrity
	return b
}

// NewPartial returns a block built up to frac of its integrity, with just enough components
// mounted to support it.
func NewPartial(def *Def, frac float64) *Block {
	b := newBlock(def)
	frac = math.Max(0, math.Min(1, frac))
	b.integrity = def.MaxIntegrity * frac
	b.mountUpTo(b.unitsFor(b.integrity), nil)
	return b
}

// NewGhost returns a projected placeholder for def.
func NewGhost(def *Def) *Block {
	b := newBlock(def)
	b.dithering = -0.25
	return b
}

func newBlock(def *Def) *Block {
	b := &Block{Def: def, mounted: make([]int, len(def.Components))}
	if def.InventoryCapacity > 0 {
		b.Inventory = inventory.New(def.InventoryCapacity)
	}
	return b
}

func (b *Block) Grid() host.Grid {
	if b.grid == nil {
		return nil
	}
	return b.grid
}

func (b *Block) Cell() geom.Vec3i { return b.min }

func (b *Block) Closing() bool             { return b.closing }
func (b *Block) SetClosing(v bool)         { b.closing = v }
func (b *Block) Deformed() bool            { return b.deformed }
func (b *Block) SetDeformed(v bool)        { b.deformed = v }
func (b *Block) Dithering() float32        { return b.dithering }
func (b *Block) SetDithering(v float32)    { b.dithering = v }
func (b *Block) ColorMask() uint32         { return b.colour }
func (b *Block) SetColorMask(v uint32)     { b.colour = v }
func (b *Block) Integrity() float64        { return b.integrity }
func (b *Block) MaxIntegrity() float64     { return b.Def.MaxIntegrity }
func (b *Block) IntegrityRate() float64    { return b.Def.rate() }
func (b *Block) DisassembleRatio() float64 { return b.Def.ratio() }
func (b *Block) ContentGates() []string    { return b.Def.ContentGates }

func (b *Block) FullIntegrity() bool { return b.integrity >= b.Def.MaxIntegrity }

func (b *Block) FullyDismounted() bool {
	return b.integrity <= 0 && b.mountedUnits() == 0 && b.grid != nil && b.grid.projector == nil
}

func (b *Block) PrimaryComponent() string {
	if len(b.Def.Components) == 0 {
		return ""
	}
	return b.Def.Components[0].Kind
}

func (b *Block) MissingComponents(dst []host.Component) []host.Component {
	for i, c := range b.Def.Components {
		if miss := c.Count - b.mounted[i]; miss > 0 {
			dst = append(dst, host.Component{Kind: c.Kind, Count: miss})
		}
	}
	return dst
}

// Mounted reports how many units of each component are installed, in definition order.
func (b *Block) Mounted() []int { return append([]int(nil), b.mounted...) }

// Restore overwrites the build state of b. Mounted counts are clipped to the definition.
func (b *Block) Restore(integrity float64, mounted []int) {
	b.integrity = math.Max(0, math.Min(integrity, b.Def.MaxIntegrity))
	for i, c := range b.Def.Components {
		n := 0
		if i < len(mounted) {
			n = max(0, min(mounted[i], c.Count))
		}
		b.mounted[i] = n
	}
}

func (b *Block) mountedUnits() int {
	n := 0
	for _, m := range b.mounted {
		n += m
	}
	return n
}

// capacity is the integrity the mounted components can support.
func (b *Block) capacity() float64 {
	if b.Def.totalUnits() == 0 {
		return b.Def.MaxIntegrity
	}
	return float64(b.mountedUnits()) * b.Def.unit()
}

func (b *Block) unitsFor(integrity float64) int {
	if integrity <= 0 {
		return 0
	}
	return int(math.Ceil(integrity/b.Def.unit() - 1e-9))
}

// mountUpTo installs components in definition order until n units are mounted. With a nil
// inventory the components are free.
func (b *Block) mountUpTo(n int, inv host.Inventory) {
	for i, c := range b.Def.Components {
		for b.mounted[i] < c.Count && b.mountedUnits() < n {
			if inv != nil && inv.Remove(c.Kind, 1) < 1 {
				return
			}
			b.mounted[i]++
		}
	}
}

// dismountTo removes components in reverse definition order until at most n units remain.
func (b *Block) dismountTo(n int, fn func(kind string)) {
	for i := len(b.Def.Components) - 1; i >= 0; i-- {
		for b.mounted[i] > 0 && b.mountedUnits() > n {
			b.mounted[i]--
			fn(b.Def.Components[i].Kind)
		}
	}
}

// nextMissing is the first component kind that is not fully mounted.
func (b *Block) nextMissing() string {
	for i, c := range b.Def.Components {
		if b.mounted[i] < c.Count {
			return c.Kind
		}
	}
	return ""
}

func (b *Block) cells() []geom.Vec3i {
	s := b.Def.span()
	out := make([]geom.Vec3i, 0, s.X*s.Y*s.Z)
	for x := 0; x < s.X; x++ {
		for y := 0; y < s.Y; y++ {
			for z := 0; z < s.Z; z++ {
				out = append(out, b.min.Add(geom.Vec3i{X: x, Y: y, Z: z}))
			}
		}
	}
	return out
}
