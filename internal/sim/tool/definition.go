package tool

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/effect"
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/tuning"
)

// Definition is the static part of a tool.
type Definition struct {
	Mode  host.Mode
	Shape effect.Shape
	// Rate is the per-tick block budget.
	Rate int

	CacheBlocks bool
	Debug       bool
	Turret      bool
	TargetRange float64
	// Block tools are mounted on a grid and pull components from its conveyor network.
	Block bool

	UseWorkColour bool
	WorkColour    uint32
}

// Values are the tunable extents and speed of a tool.
type Values struct {
	Speed      float64
	Radius     float64
	Length     float64
	HalfExtent mgl64.Vec3
}

type Pose struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Up       mgl64.Vec3
}

// Session holds the settings shared by every tool in a run.
type Session struct {
	Authoritative bool
	Creative      bool
	WelderSpeed   float64
	GrinderSpeed  float64
	BulkThreshold int
}

func SessionFromTuning(t tuning.Tuning) Session {
	return Session{
		Authoritative: t.Authoritative,
		Creative:      t.Creative,
		WelderSpeed:   t.WelderSpeedMultiplier,
		GrinderSpeed:  t.GrinderSpeedMultiplier,
		BulkThreshold: t.BulkWeldThreshold,
	}
}

// Amount is the work one operation of mode applies this session.
func (s Session) Amount(mode host.Mode, speed float64) float64 {
	switch mode {
	case host.ModeWeld:
		return speed * s.WelderSpeed
	case host.ModeGrind:
		return speed * s.GrinderSpeed
	}
	return 0
}

// FromTuning converts a tool entry of the tuning file.
func FromTuning(t tuning.Tool) (Definition, Values, Pose, error) {
	mode, err := host.ParseMode(t.Mode)
	if err != nil {
		return Definition{}, Values{}, Pose{}, fmt.Errorf("tool %s: %w", t.ID, err)
	}
	shape, err := effect.ParseShape(t.Shape)
	if err != nil {
		return Definition{}, Values{}, Pose{}, fmt.Errorf("tool %s: %w", t.ID, err)
	}
	def := Definition{
		Mode:        mode,
		Shape:       shape,
		Rate:        t.Rate,
		CacheBlocks: t.CacheBlocks,
		Debug:       t.Debug,
		Turret:      t.Turret,
		TargetRange: t.TargetRange,
		Block:       t.Block,
	}
	if t.WorkColour != nil {
		def.UseWorkColour = true
		def.WorkColour = *t.WorkColour
	}
	vals := Values{
		Speed:      t.Speed,
		Radius:     t.Radius,
		Length:     t.Length,
		HalfExtent: mgl64.Vec3(t.HalfExtent),
	}
	pose := Pose{
		Position: mgl64.Vec3(t.Position),
		Forward:  mgl64.Vec3(t.Forward),
		Up:       mgl64.Vec3(t.Up),
	}
	if pose.Up == (mgl64.Vec3{}) {
		pose.Up = mgl64.Vec3{0, 1, 0}
	}
	return def, vals, pose, nil
}

// Volume builds this tick's effect volume from the pose.
func (d Definition) Volume(v Values, p Pose) effect.Volume {
	fwd := p.Forward
	if fwd.Len() > 0 {
		fwd = fwd.Normalize()
	}
	switch d.Shape {
	case effect.ShapeSphere:
		return effect.Sphere(p.Position, v.Radius)
	case effect.ShapeCylinder:
		return effect.Cylinder(p.Position, fwd, v.Radius, v.Length)
	case effect.ShapeCuboid:
		return effect.Cuboid(p.Position, fwd, p.Up, v.HalfExtent)
	case effect.ShapeLine:
		return effect.Line(p.Position, fwd, v.Length)
	case effect.ShapeRay:
		return effect.Ray(p.Position, fwd, v.Length)
	}
	return effect.Volume{Shape: d.Shape, Position: p.Position, Forward: fwd, Up: p.Up}
}
