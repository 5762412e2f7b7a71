package voxel

import (
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/inventory"
)

// DamageHook may rewrite the amount of grind damage before it is applied.
type DamageHook func(b *Block, amount float64, attacker string) float64

// Mutator applies tool work to voxel blocks.
type Mutator struct {
	// Drops collects items that did not fit into the receiving inventory.
	Drops *inventory.Inventory

	BeforeDamage DamageHook
	AfterDamage  func(b *Block, amount float64, attacker string)
}

func NewMutator() *Mutator {
	return &Mutator{Drops: inventory.New(0)}
}

func (m *Mutator) drop(kind string, n int) {
	if m.Drops == nil {
		m.Drops = inventory.New(0)
	}
	m.Drops.Add(kind, n)
}

// ApplyDamage lowers integrity and dismounts the components it no longer supports into inv.
func (m *Mutator) ApplyDamage(hb host.Block, amount float64, attacker string, inv host.Inventory) {
	b, ok := hb.(*Block)
	if !ok || amount <= 0 {
		return
	}
	if m.BeforeDamage != nil {
		amount = m.BeforeDamage(b, amount, attacker)
		if amount <= 0 {
			return
		}
	}
	b.integrity -= amount * b.Def.rate() / b.Def.ratio()
	if b.integrity < 0 {
		b.integrity = 0
	}
	b.dismountTo(b.unitsFor(b.integrity), func(kind string) {
		if inv == nil || inv.Add(kind, 1) < 1 {
			m.drop(kind, 1)
		}
	})
	if m.AfterDamage != nil {
		m.AfterDamage(b, amount, attacker)
	}
}

// IncreaseCompletion mounts components from inv as needed and raises integrity by amount
// scaled by the block's rate, capped by what the mounted components support.
func (m *Mutator) IncreaseCompletion(hb host.Block, amount float64, owner int64, inv host.Inventory) {
	b, ok := hb.(*Block)
	if !ok || amount <= 0 {
		return
	}
	target := min(b.integrity+amount*b.Def.rate(), b.Def.MaxIntegrity)
	b.mountUpTo(b.unitsFor(target), inv)
	b.integrity = min(target, b.capacity())
	if b.FullIntegrity() {
		b.deformed = false
	}
	if b.Owner == 0 {
		b.Owner = owner
	}
}

// CanContinueBuild is true while mounted stock still supports more integrity or inv holds
// the next missing component.
func (m *Mutator) CanContinueBuild(hb host.Block, inv host.Inventory) bool {
	b, ok := hb.(*Block)
	if !ok {
		return false
	}
	if b.integrity < b.capacity() {
		return true
	}
	next := b.nextMissing()
	return next != "" && inv != nil && inv.Amount(next) > 0
}

// DisassembleAndRemove empties the block inventory into inv, drops its remaining
// components and removes it from its grid.
func (m *Mutator) DisassembleAndRemove(hb host.Block, inv host.Inventory) {
	b, ok := hb.(*Block)
	if !ok || b.grid == nil {
		return
	}
	if b.Inventory != nil {
		for _, it := range b.Inventory.MoveAll(inv) {
			b.Inventory.Remove(it.Kind, it.Count)
			m.drop(it.Kind, it.Count)
		}
	}
	b.dismountTo(0, func(kind string) { m.drop(kind, 1) })
	b.grid.Remove(b)
}

// ConstructGhost places a real block for ghost in the projector's target grid, with the
// primary component already mounted, and removes the ghost.
func (m *Mutator) ConstructGhost(hb host.Block, owner, builtBy int64) (host.Block, bool) {
	ghost, ok := hb.(*Block)
	if !ok || ghost.grid == nil || ghost.grid.projector == nil {
		return nil, false
	}
	p := ghost.grid.projector
	if !p.CanBuild(ghost) {
		return nil, false
	}
	nb := newBlock(ghost.Def)
	nb.colour = ghost.colour
	nb.Owner = owner
	nb.BuiltBy = builtBy
	if len(nb.mounted) > 0 && ghost.Def.Components[0].Count > 0 {
		nb.mounted[0] = 1
	}
	nb.integrity = min(nb.capacity(), ghost.Def.MaxIntegrity)
	if nb.integrity <= 0 {
		nb.integrity = ghost.Def.unit()
	}
	if !p.target.Place(nb, p.targetCell(ghost.min)) {
		return nil, false
	}
	ghost.grid.Remove(ghost)
	return nb, true
}

var _ host.Mutator = (*Mutator)(nil)
