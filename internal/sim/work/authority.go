package work

import (
	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

// Key addresses a cell of a grid without holding a block handle.
type Key struct {
	Grid string     `json:"grid"`
	Cell geom.Vec3i `json:"cell"`
}

type prediction struct {
	grid host.Grid
	cell geom.Vec3i
}

// PredictionCache holds cells a non-authoritative tool expects to keep working on. Entries
// are resolved back to blocks at the start of the next tick.
type PredictionCache struct {
	entries []prediction
	index   map[Key]struct{}
}

func NewPredictionCache() *PredictionCache {
	return &PredictionCache{index: map[Key]struct{}{}}
}

func (p *PredictionCache) Add(g host.Grid, cell geom.Vec3i) bool {
	if g == nil {
		return false
	}
	k := Key{Grid: g.ID(), Cell: cell}
	if _, ok := p.index[k]; ok {
		return false
	}
	p.index[k] = struct{}{}
	p.entries = append(p.entries, prediction{grid: g, cell: cell})
	return true
}

func (p *PredictionCache) Len() int { return len(p.entries) }

func (p *PredictionCache) Keys() []Key {
	out := make([]Key, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, Key{Grid: e.grid.ID(), Cell: e.cell})
	}
	return out
}

// Reconcile drops entries the authority reported as settled and returns how many it dropped.
func (p *PredictionCache) Reconcile(settled []Key) int {
	if len(settled) == 0 || len(p.entries) == 0 {
		return 0
	}
	drop := make(map[Key]struct{}, len(settled))
	for _, k := range settled {
		drop[k] = struct{}{}
	}
	kept := p.entries[:0]
	n := 0
	for _, e := range p.entries {
		k := Key{Grid: e.grid.ID(), Cell: e.cell}
		if _, ok := drop[k]; ok {
			delete(p.index, k)
			n++
			continue
		}
		kept = append(kept, e)
	}
	clear(p.entries[len(kept):])
	p.entries = kept
	return n
}

// Resolve empties the cache and returns the live blocks still found at the predicted cells.
func (p *PredictionCache) Resolve() []host.Block {
	var out []host.Block
	seen := map[host.Block]struct{}{}
	for _, e := range p.entries {
		if e.grid.Closing() {
			continue
		}
		b, ok := e.grid.Occupant(e.cell)
		if !ok || !host.Live(b) {
			continue
		}
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	p.Clear()
	return out
}

func (p *PredictionCache) Clear() {
	p.entries = nil
	clear(p.index)
}

// Authority splits work between the side that mutates shared state and the side that only
// predicts it.
type Authority struct {
	Authoritative bool
	Predictions   *PredictionCache
}

func (a Authority) Mutates() bool { return a.Authoritative }

func (a Authority) Predict(g host.Grid, cell geom.Vec3i) {
	if a.Predictions != nil {
		a.Predictions.Add(g, cell)
	}
}
