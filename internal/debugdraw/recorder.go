// Package debugdraw collects the debug boxes tools emit during a tick.
package debugdraw

import (
	"sync"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

type Box struct {
	OBB    geom.OBB
	Colour host.Colour
}

// Recorder buffers boxes until drained. Safe for concurrent scans.
type Recorder struct {
	mu    sync.Mutex
	boxes []Box
	// Limit caps the buffered boxes per drain. 0 means unlimited.
	Limit   int
	dropped int
}

func (r *Recorder) RecordBox(box geom.OBB, c host.Colour) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Limit > 0 && len(r.boxes) >= r.Limit {
		r.dropped++
		return
	}
	r.boxes = append(r.boxes, Box{OBB: box, Colour: c})
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boxes)
}

// Drain returns the buffered boxes and how many were dropped over Limit, then resets.
func (r *Recorder) Drain() ([]Box, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, dropped := r.boxes, r.dropped
	r.boxes, r.dropped = nil, 0
	return out, dropped
}

// Count tallies boxes by colour.
func Count(boxes []Box) map[host.Colour]int {
	out := map[host.Colour]int{}
	for _, b := range boxes {
		out[b.Colour]++
	}
	return out
}

var _ host.DebugSink = (*Recorder)(nil)
