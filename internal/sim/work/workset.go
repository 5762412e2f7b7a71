package work

import "toolcore.dev/internal/sim/host"

// WorkSet keeps blocks still in progress across ticks, in insertion order.
type WorkSet struct {
	blocks []host.Block
	index  map[host.Block]struct{}
}

func NewWorkSet() *WorkSet {
	return &WorkSet{index: map[host.Block]struct{}{}}
}

// Add appends b unless it is already present.
func (w *WorkSet) Add(b host.Block) bool {
	if b == nil {
		return false
	}
	if _, ok := w.index[b]; ok {
		return false
	}
	w.index[b] = struct{}{}
	w.blocks = append(w.blocks, b)
	return true
}

func (w *WorkSet) Contains(b host.Block) bool {
	_, ok := w.index[b]
	return ok
}

func (w *WorkSet) Len() int { return len(w.blocks) }

func (w *WorkSet) Blocks() []host.Block { return append([]host.Block(nil), w.blocks...) }

// Prune drops blocks that can no longer be worked on in mode and returns how many were
// dropped.
func (w *WorkSet) Prune(mode host.Mode) int {
	kept := w.blocks[:0]
	dropped := 0
	for _, b := range w.blocks {
		if !host.Live(b) || mode == host.ModeWeld && b.FullIntegrity() && !b.Deformed() {
			delete(w.index, b)
			dropped++
			continue
		}
		kept = append(kept, b)
	}
	clear(w.blocks[len(kept):])
	w.blocks = kept
	return dropped
}

// Drain empties the set and returns its former members.
func (w *WorkSet) Drain() []host.Block {
	out := w.blocks
	w.blocks = nil
	clear(w.index)
	return out
}

func (w *WorkSet) Clear() {
	w.blocks = nil
	clear(w.index)
}
