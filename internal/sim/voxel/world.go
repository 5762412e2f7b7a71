// Package voxel is an in-memory store of block grids, ghost projections and the mutations
// tools apply to them.
package voxel

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

type World struct {
	mu    sync.RWMutex
	grids map[string]*Grid
}

func NewWorld() *World {
	return &World{grids: map[string]*Grid{}}
}

func (w *World) Add(g *Grid) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grids[g.id] = g
}

// Remove closes the grid and forgets it.
func (w *World) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if g := w.grids[id]; g != nil {
		g.closing = true
		delete(w.grids, id)
	}
}

func (w *World) Grid(id string) *Grid {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.grids[id]
}

// Grids lists all grids sorted by id.
func (w *World) Grids() []*Grid {
	w.mu.RLock()
	out := make([]*Grid, 0, len(w.grids))
	for _, g := range w.grids {
		out = append(out, g)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// GridsNear returns the open grids whose world bounds come within radius of centre, sorted
// by id.
func (w *World) GridsNear(centre mgl64.Vec3, radius float64) []host.Grid {
	var out []host.Grid
	for _, g := range w.Grids() {
		if g.closing {
			continue
		}
		box, ok := g.WorldBounds()
		if !ok {
			continue
		}
		closest := geom.Clamp(centre, box.Min, box.Max)
		if geom.DistSq(closest, centre) <= radius*radius {
			out = append(out, g)
		}
	}
	return out
}
