// Package scan selects the occupied cells an effect volume touches and buckets them into
// proximity layers.
package scan

import (
	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/effect"
	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

// Filter holds the per-tool eligibility settings applied to every hit.
type Filter struct {
	Mode          host.Mode
	UseWorkColour bool
	WorkColour    uint32
}

// Eligible applies the shared rejection rules. Blocks already visited are handled by the
// caller's dedup set, not here.
func (f Filter) Eligible(b host.Block, g host.Grid) bool {
	if b.Closing() || g.Closing() {
		return false
	}
	proj := g.Projector()
	if proj != nil {
		d := b.Dithering() + 0.25
		if d < 0 {
			d = -d
		}
		if d > 0.24 {
			return false
		}
	} else if f.Mode == host.ModeWeld && b.FullIntegrity() && !b.Deformed() {
		return false
	}
	if f.UseWorkColour {
		c := b.ColorMask()
		if proj != nil {
			c = proj.ColorMask()
		}
		if c != f.WorkColour {
			return false
		}
	}
	return true
}

type Scanner struct {
	Filter Filter
	// Debug receives the candidate box of cuboid scans. Optional.
	Debug host.DebugSink

	seen    map[host.Block]struct{}
	exclude map[host.Block]struct{}
}

func NewScanner(f Filter, debug host.DebugSink) *Scanner {
	return &Scanner{
		Filter:  f,
		Debug:   debug,
		seen:    map[host.Block]struct{}{},
		exclude: map[host.Block]struct{}{},
	}
}

// Exclude marks occupants that are handled elsewhere this tick. They are treated as already
// seen by every grid scan until the next call.
func (s *Scanner) Exclude(bs []host.Block) {
	clear(s.exclude)
	for _, b := range bs {
		s.exclude[b] = struct{}{}
	}
}

// Scan collects every eligible occupant of grids touched by v.
func (s *Scanner) Scan(v effect.Volume, grids []host.Grid) (*LayerMap, error) {
	out := NewLayerMap()
	if err := s.ScanInto(out, v, grids); err != nil {
		return nil, err
	}
	return out, nil
}

// ScanInto appends hits to an existing LayerMap.
func (s *Scanner) ScanInto(out *LayerMap, v effect.Volume, grids []host.Grid) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if s.seen == nil {
		s.seen = map[host.Block]struct{}{}
	}
	for _, g := range grids {
		if g == nil {
			continue
		}
		s.resetSeen()
		s.scanGrid(out, v, g)
	}
	s.resetSeen()
	return nil
}

func (s *Scanner) resetSeen() {
	clear(s.seen)
	for b := range s.exclude {
		s.seen[b] = struct{}{}
	}
}

// Local is an effect volume expressed in one grid's scaled local space.
type Local struct {
	Centre  mgl64.Vec3
	Forward mgl64.Vec3
	Box     geom.OBB // cuboid only
	// Extent is the unclamped local search box.
	Extent geom.AABB
	// Min and Max bound the candidate cells after clamping to the grid.
	Min, Max geom.Vec3i
}

// Localize converts v into g's local space and computes its candidate cell box.
func Localize(v effect.Volume, g host.Grid) Local {
	inv := 1 / g.CellSize()
	l := Local{
		Centre:  g.WorldToLocal(v.Position),
		Forward: g.DirectionToLocal(v.Forward),
	}
	if v.Shape == effect.ShapeCuboid {
		up := g.DirectionToLocal(v.Up)
		l.Box = geom.OBB{
			Center:     l.Centre,
			Axes:       geom.Orientation(l.Forward, up),
			HalfExtent: v.HalfExtent.Mul(inv),
		}
		h := l.Box.AABBHalfExtents()
		l.Extent = geom.AABB{Min: l.Centre.Sub(h), Max: l.Centre.Add(h)}
	} else {
		r := v.BoundingRadius * inv
		rv := mgl64.Vec3{r, r, r}
		l.Extent = geom.AABB{Min: l.Centre.Sub(rv), Max: l.Centre.Add(rv)}
	}
	gMin, gMax := g.Bounds()
	l.Min = geom.MaxVec3i(geom.Round(l.Extent.Min), gMin)
	l.Max = geom.MinVec3i(geom.Round(l.Extent.Max), gMax)
	return l
}

func (s *Scanner) scanGrid(out *LayerMap, v effect.Volume, g host.Grid) {
	inv := 1 / g.CellSize()
	l := Localize(v, g)

	switch v.Shape {
	case effect.ShapeSphere:
		r := v.Radius * inv
		s.eachCell(l, func(c geom.Vec3i) {
			if ok, d := geom.SphereHit(c, l.Centre, r); ok {
				s.visit(out, g, c, d)
			}
		})
	case effect.ShapeCylinder:
		cyl := geom.NewCylinder(l.Centre, l.Forward, v.Radius*inv, v.Length*inv)
		s.eachCell(l, func(c geom.Vec3i) {
			if ok, d := cyl.Hit(c); ok {
				s.visit(out, g, c, d)
			}
		})
	case effect.ShapeCuboid:
		if s.Debug != nil {
			s.Debug.RecordBox(host.LocalBox(g, l.Extent), host.ColourLightBlue)
		}
		s.eachCell(l, func(c geom.Vec3i) {
			if ok, d := geom.CuboidHit(c, l.Box); ok {
				s.visit(out, g, c, d)
			}
		})
	case effect.ShapeLine:
		gMin, gMax := g.Bounds()
		for _, c := range g.CastCells(v.Position, v.End()) {
			if !geom.Contains(gMin, gMax, c) {
				continue
			}
			s.visit(out, g, c, geom.DistSq(v.Position, g.LocalToWorld(c.Vec3())))
		}
	case effect.ShapeRay:
		c := geom.Round(g.WorldToLocal(v.RayPoint()))
		gMin, gMax := g.Bounds()
		if geom.Contains(gMin, gMax, c) {
			s.visit(out, g, c, v.Length)
		}
	}
}

func (s *Scanner) eachCell(l Local, fn func(geom.Vec3i)) {
	for x := l.Min.X; x <= l.Max.X; x++ {
		for y := l.Min.Y; y <= l.Max.Y; y++ {
			for z := l.Min.Z; z <= l.Max.Z; z++ {
				fn(geom.Vec3i{X: x, Y: y, Z: z})
			}
		}
	}
}

func (s *Scanner) visit(out *LayerMap, g host.Grid, c geom.Vec3i, metric float64) {
	b, ok := g.Occupant(c)
	if !ok || b == nil {
		return
	}
	if _, dup := s.seen[b]; dup {
		return
	}
	s.seen[b] = struct{}{}
	if !s.Filter.Eligible(b, g) {
		return
	}
	out.Add(geom.CeilLayer(metric), b)
}
