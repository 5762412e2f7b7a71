// Package inventory holds item stacks for tools and blocks, and the conveyor network tools
// pull missing components from.
package inventory

import (
	"sort"

	"toolcore.dev/internal/sim/host"
)

// FullThreshold is the fill fraction at which an inventory stops accepting pulls.
const FullThreshold = 0.999

type Inventory struct {
	// Capacity is the total item count the inventory can hold. 0 means unlimited.
	Capacity int
	items    map[string]int
	used     int
}

func New(capacity int) *Inventory {
	return &Inventory{Capacity: capacity, items: map[string]int{}}
}

// FromItems builds an inventory pre-filled with items.
func FromItems(capacity int, items map[string]int) *Inventory {
	inv := New(capacity)
	for kind, n := range items {
		inv.Add(kind, n)
	}
	return inv
}

func (inv *Inventory) Amount(kind string) int {
	if inv == nil {
		return 0
	}
	return inv.items[kind]
}

func (inv *Inventory) Add(kind string, n int) int {
	if inv == nil || kind == "" || n <= 0 {
		return 0
	}
	if inv.items == nil {
		inv.items = map[string]int{}
	}
	if inv.Capacity > 0 {
		if room := inv.Capacity - inv.used; n > room {
			n = room
		}
		if n <= 0 {
			return 0
		}
	}
	inv.items[kind] += n
	inv.used += n
	return n
}

func (inv *Inventory) Remove(kind string, n int) int {
	if inv == nil || n <= 0 {
		return 0
	}
	have := inv.items[kind]
	if n > have {
		n = have
	}
	if n <= 0 {
		return 0
	}
	inv.items[kind] -= n
	if inv.items[kind] <= 0 {
		delete(inv.items, kind)
	}
	inv.used -= n
	return n
}

// Fill is the used fraction of capacity; unlimited inventories are never full.
func (inv *Inventory) Fill() float64 {
	if inv == nil || inv.Capacity <= 0 {
		return 0
	}
	return float64(inv.used) / float64(inv.Capacity)
}

func (inv *Inventory) Full() bool { return inv.Fill() >= FullThreshold }

func (inv *Inventory) Used() int {
	if inv == nil {
		return 0
	}
	return inv.used
}

// Items lists non-empty stacks sorted by kind.
func (inv *Inventory) Items() []host.Component {
	if inv == nil {
		return nil
	}
	out := make([]host.Component, 0, len(inv.items))
	for kind, n := range inv.items {
		if n <= 0 {
			continue
		}
		out = append(out, host.Component{Kind: kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// MoveAll transfers as much as fits into dst and returns what did not fit.
func (inv *Inventory) MoveAll(dst host.Inventory) []host.Component {
	var left []host.Component
	for _, it := range inv.Items() {
		moved := 0
		if dst != nil {
			moved = dst.Add(it.Kind, it.Count)
		}
		inv.Remove(it.Kind, moved)
		if moved < it.Count {
			left = append(left, host.Component{Kind: it.Kind, Count: it.Count - moved})
		}
	}
	return left
}

// Reset replaces the contents with items, clipped to capacity.
func (inv *Inventory) Reset(items map[string]int) {
	if inv == nil {
		return
	}
	inv.items = map[string]int{}
	inv.used = 0
	kinds := make([]string, 0, len(items))
	for kind := range items {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		inv.Add(kind, items[kind])
	}
}

// Counts returns the stacks as a map.
func (inv *Inventory) Counts() map[string]int {
	out := map[string]int{}
	for _, it := range inv.Items() {
		out[it.Kind] = it.Count
	}
	return out
}
