package scene

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/persistence/snapshot"
	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/voxel"
)

// Snapshot captures block and tool inventory state. Work sets and predictions are not
// kept; the first scan after a restore rebuilds them.
func (s *Scene) Snapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Tick: tick},
		Seed:   s.Tuning.Demo.Seed,
		Size:   s.Tuning.Demo.Size,
	}
	if d, _, err := s.Tuning.Digest(); err == nil {
		snap.Header.Digest = d
	}
	for _, g := range s.Demo.World.Grids() {
		gs := snapshot.GridV1{ID: g.ID(), Closing: g.Closing()}
		for _, b := range g.Blocks() {
			bs := snapshot.BlockV1{
				Def:       b.Def.ID,
				Cell:      b.Cell().ToArray(),
				Integrity: b.Integrity(),
				Mounted:   b.Mounted(),
				Deformed:  b.Deformed(),
				Dithering: b.Dithering(),
				Colour:    b.ColorMask(),
				Owner:     b.Owner,
				BuiltBy:   b.BuiltBy,
			}
			if b.Inventory != nil {
				bs.Items = b.Inventory.Counts()
			}
			gs.Blocks = append(gs.Blocks, bs)
		}
		snap.Grids = append(snap.Grids, gs)
	}
	for _, t := range s.Tools {
		snap.Tools = append(snap.Tools, snapshot.ToolV1{ID: t.ID, Items: t.Inventory.Counts()})
	}
	return snap
}

// Restore applies snap on top of the freshly built demo. The snapshot must come from the
// same demo layout; nothing is changed when it does not validate.
func (s *Scene) Restore(snap snapshot.SnapshotV1) error {
	if snap.Seed != s.Tuning.Demo.Seed || snap.Size != s.Tuning.Demo.Size {
		return fmt.Errorf("scene: snapshot demo seed=%d size=%d, tuning has seed=%d size=%d",
			snap.Seed, snap.Size, s.Tuning.Demo.Seed, s.Tuning.Demo.Size)
	}
	defs := voxel.Defs()
	keep := map[string]bool{}
	for _, gs := range snap.Grids {
		if s.Demo.World.Grid(gs.ID) == nil {
			return fmt.Errorf("scene: snapshot grid %q not in scene", gs.ID)
		}
		keep[gs.ID] = true
		for _, bs := range gs.Blocks {
			if defs[bs.Def] == nil {
				return fmt.Errorf("scene: snapshot block %q at %v in %s has no definition", bs.Def, bs.Cell, gs.ID)
			}
		}
	}
	if d, _, err := s.Tuning.Digest(); err == nil && snap.Header.Digest != "" && d != snap.Header.Digest {
		s.log.WithFields(logrus.Fields{"snapshot": snap.Header.Digest, "tuning": d}).Warn("restoring a snapshot taken under different tuning")
	}

	for _, g := range s.Demo.World.Grids() {
		if !keep[g.ID()] {
			s.Demo.World.Remove(g.ID())
		}
	}
	for _, gs := range snap.Grids {
		restoreGrid(s.Demo.World.Grid(gs.ID), gs, defs)
	}

	for _, ts := range snap.Tools {
		t := s.Tool(ts.ID)
		if t == nil {
			s.log.WithField("tool", ts.ID).Warn("snapshot tool not in scene")
			continue
		}
		t.Inventory.Reset(ts.Items)
	}
	s.log.WithFields(logrus.Fields{"tick": snap.Header.Tick, "grids": len(snap.Grids)}).Info("scene restored")
	return nil
}

func restoreGrid(g *voxel.Grid, gs snapshot.GridV1, defs map[string]*voxel.Def) {
	g.SetClosing(gs.Closing)
	listed := map[geom.Vec3i]snapshot.BlockV1{}
	for _, bs := range gs.Blocks {
		listed[cellOf(bs.Cell)] = bs
	}
	for _, b := range g.Blocks() {
		if bs, ok := listed[b.Cell()]; !ok || bs.Def != b.Def.ID {
			g.Remove(b)
		}
	}
	for _, bs := range gs.Blocks {
		cell := cellOf(bs.Cell)
		b := g.Block(cell)
		if b == nil || b.Cell() != cell {
			b = voxel.NewPartial(defs[bs.Def], 0)
			if !g.Place(b, cell) {
				continue
			}
		}
		b.Restore(bs.Integrity, bs.Mounted)
		b.SetDeformed(bs.Deformed)
		b.SetDithering(bs.Dithering)
		b.SetColorMask(bs.Colour)
		b.Owner = bs.Owner
		b.BuiltBy = bs.BuiltBy
		if b.Inventory != nil {
			b.Inventory.Reset(bs.Items)
		}
	}
}

func cellOf(c [3]int) geom.Vec3i { return geom.Vec3i{X: c[0], Y: c[1], Z: c[2]} }
