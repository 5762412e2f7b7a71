package scan

import (
	"sort"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

// LayerMap buckets occupants by proximity layer. Insertion order is kept within a layer.
type LayerMap struct {
	layers   map[int][]host.Block
	count    int
	MaxLayer int
}

func NewLayerMap() *LayerMap {
	return &LayerMap{layers: map[int][]host.Block{}}
}

func (m *LayerMap) Add(layer int, b host.Block) {
	if layer < 0 {
		layer = 0
	}
	if m.layers == nil {
		m.layers = map[int][]host.Block{}
	}
	m.layers[layer] = append(m.layers[layer], b)
	m.count++
	if layer > m.MaxLayer {
		m.MaxLayer = layer
	}
}

// Prepend puts bs in front of whatever layer already holds, skipping duplicates.
func (m *LayerMap) Prepend(layer int, bs []host.Block) {
	if len(bs) == 0 {
		return
	}
	if m.layers == nil {
		m.layers = map[int][]host.Block{}
	}
	cur := m.layers[layer]
	seen := make(map[host.Block]struct{}, len(bs)+len(cur))
	out := make([]host.Block, 0, len(bs)+len(cur))
	for _, b := range bs {
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	for _, b := range cur {
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	m.count += len(out) - len(cur)
	m.layers[layer] = out
	if layer > m.MaxLayer {
		m.MaxLayer = layer
	}
}

func (m *LayerMap) Layer(i int) []host.Block { return m.layers[i] }

// Len is the number of occupants across all layers.
func (m *LayerMap) Len() int { return m.count }

func (m *LayerMap) Empty() bool { return m.count == 0 }

func (m *LayerMap) Reset() {
	clear(m.layers)
	m.count = 0
	m.MaxLayer = 0
}

// Each visits occupants nearest first until fn returns false.
func (m *LayerMap) Each(fn func(layer int, b host.Block) bool) {
	for i := 0; i <= m.MaxLayer; i++ {
		for _, b := range m.layers[i] {
			if !fn(i, b) {
				return
			}
		}
	}
}

// LayerOf returns the layer holding b, or -1.
func (m *LayerMap) LayerOf(b host.Block) int {
	found := -1
	m.Each(func(layer int, o host.Block) bool {
		if o == b {
			found = layer
			return false
		}
		return true
	})
	return found
}

// Entry is a flattened, comparable view of one LayerMap slot.
type Entry struct {
	Layer int
	Grid  string
	Cell  geom.Vec3i
}

func (m *LayerMap) Entries() []Entry {
	out := make([]Entry, 0, m.count)
	m.Each(func(layer int, b host.Block) bool {
		out = append(out, Entry{Layer: layer, Grid: b.Grid().ID(), Cell: b.Cell()})
		return true
	})
	return out
}

// Layers lists the non-empty layer indices in ascending order.
func (m *LayerMap) Layers() []int {
	out := make([]int, 0, len(m.layers))
	for k, v := range m.layers {
		if len(v) > 0 {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
