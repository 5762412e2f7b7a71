package inventory

import (
	"sort"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/mathx"
)

// Source is a container connected to a conveyor network.
type Source struct {
	ID  string
	Pos geom.Vec3i
	Inv *Inventory
}

// Network pulls items from connected containers into a tool, nearest container first.
type Network struct {
	Anchor geom.Vec3i
	// Range limits the manhattan distance of usable sources. 0 means unlimited.
	Range int

	sources []*Source
	pulls   int
}

func NewNetwork(anchor geom.Vec3i, rng int) *Network {
	return &Network{Anchor: anchor, Range: rng}
}

func (n *Network) Attach(src *Source) {
	if src == nil || src.Inv == nil {
		return
	}
	n.sources = append(n.sources, src)
}

// Pulls counts Pull calls since the network was created.
func (n *Network) Pulls() int { return n.pulls }

// Candidates lists usable sources sorted by distance, then position, then id.
func (n *Network) Candidates() []*Source {
	type cand struct {
		src  *Source
		dist int
	}
	cs := make([]cand, 0, len(n.sources))
	for _, s := range n.sources {
		d := mathx.Manhattan(s.Pos, n.Anchor)
		if n.Range > 0 && d > n.Range {
			continue
		}
		cs = append(cs, cand{src: s, dist: d})
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].dist != cs[j].dist {
			return cs[i].dist < cs[j].dist
		}
		if cs[i].src.Pos != cs[j].src.Pos {
			return cs[i].src.Pos.Less(cs[j].src.Pos)
		}
		return cs[i].src.ID < cs[j].src.ID
	})
	out := make([]*Source, len(cs))
	for i, c := range cs {
		out[i] = c.src
	}
	return out
}

// Pull moves up to qty of kind into dst and returns the amount delivered.
func (n *Network) Pull(kind string, qty int, dst host.Inventory) int {
	n.pulls++
	if kind == "" || qty <= 0 || dst == nil {
		return 0
	}
	got := 0
	for _, src := range n.Candidates() {
		if got >= qty {
			break
		}
		avail := src.Inv.Amount(kind)
		if avail <= 0 {
			continue
		}
		take := min(avail, qty-got)
		added := dst.Add(kind, take)
		src.Inv.Remove(kind, added)
		got += added
		if added < take {
			// Destination is full.
			break
		}
	}
	return got
}
