package scan

import (
	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/effect"
	"toolcore.dev/internal/sim/host"
)

// ScanTargets runs the sphere scan a turret uses to find candidate targets.
func (s *Scanner) ScanTargets(pos mgl64.Vec3, radius float64, grids []host.Grid) (*LayerMap, error) {
	return s.Scan(effect.Sphere(pos, radius), grids)
}

// Targets lists live occupants farthest layer first. Layer 0 is skipped; it holds the
// cell the turret is mounted in.
func Targets(m *LayerMap) []host.Block {
	out := make([]host.Block, 0, m.Len())
	for i := m.MaxLayer; i > 0; i-- {
		for _, b := range m.Layer(i) {
			if !host.Live(b) {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}
