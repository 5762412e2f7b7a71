// Package work consumes a tool's LayerMap, nearest layer first, and applies a bounded number
// of weld or grind operations to the blocks in it.
package work

import (
	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/ledger"
	"toolcore.dev/internal/sim/scan"
)

const DefaultBulkThreshold = 4

type Settings struct {
	Mode host.Mode
	// Budget is the number of blocks that may be worked per tick.
	Budget int
	// Amount is the work applied to each block, speed times the session multiplier.
	Amount float64
	// Cache keeps blocks still in progress for the next tick.
	Cache    bool
	Debug    bool
	Creative bool
	// BulkThreshold is the budget above which welding batches resource pulls.
	BulkThreshold int
}

// Env bundles the collaborators a tool works through.
type Env struct {
	Inventory host.Inventory
	// Puller is nil for hand-held tools.
	Puller       host.Puller
	Entitlements host.Entitlements
	Mutator      host.Mutator
	Turret       host.Turret
	Debug        host.DebugSink
	Log          logrus.FieldLogger

	Owner    int64
	BuiltBy  int64
	Identity uint64
	Attacker string
}

type Scheduler struct {
	Settings  Settings
	Env       Env
	Authority Authority
	WorkSet   *WorkSet
	Failed    ledger.FailedPulls

	ledger *ledger.Ledger
	// shadow only reads the inventory; predictions must not pull from the network.
	shadow *ledger.Ledger
	needs  []host.Component
	res    Result
	// resolved holds predictions Retained already turned back into blocks.
	resolved []host.Block
}

func New(s Settings, env Env, auth Authority) *Scheduler {
	if s.BulkThreshold <= 0 {
		s.BulkThreshold = DefaultBulkThreshold
	}
	if env.Log == nil {
		env.Log = logrus.StandardLogger()
	}
	if auth.Predictions == nil {
		auth.Predictions = NewPredictionCache()
	}
	failed := ledger.FailedPulls{}
	return &Scheduler{
		Settings:  s,
		Env:       env,
		Authority: auth,
		WorkSet:   NewWorkSet(),
		Failed:    failed,
		ledger:    ledger.New(env.Inventory, env.Puller, failed, env.Log),
		shadow:    ledger.New(env.Inventory, nil, ledger.FailedPulls{}, env.Log),
	}
}

// books picks the ledger for this side: a non-authoritative scheduler checks stock on hand
// without replenishing it.
func (s *Scheduler) books() *ledger.Ledger {
	if s.Authority.Mutates() {
		return s.ledger
	}
	return s.shadow
}

// Bulk reports whether welding goes through the batched path.
func (s *Scheduler) Bulk() bool {
	return s.Settings.Mode == host.ModeWeld && s.Settings.Budget > s.Settings.BulkThreshold
}

// Retained lists the blocks the next scan should skip: the WorkSet members and the resolved
// predictions, which Process feeds back at layer 0 instead.
func (s *Scheduler) Retained() []host.Block {
	s.resolved = append(s.resolved, s.Authority.Predictions.Resolve()...)
	return append(s.WorkSet.Blocks(), s.resolved...)
}

// Process works through layers and resets them, together with the per-tick failed pulls,
// whether or not it returns normally.
func (s *Scheduler) Process(layers *scan.LayerMap) Result {
	s.res = Result{}
	defer func() {
		s.Failed.Clear()
		layers.Reset()
	}()

	if s.Settings.Cache {
		s.WorkSet.Prune(s.Settings.Mode)
	}
	carried := s.WorkSet.Drain()
	carried = append(carried, s.resolved...)
	s.resolved = nil
	carried = append(carried, s.Authority.Predictions.Resolve()...)
	layers.Prepend(0, carried)

	if layers.Empty() || s.Settings.Budget <= 0 {
		return s.res
	}
	switch s.Settings.Mode {
	case host.ModeGrind:
		s.grind(layers)
	case host.ModeWeld:
		if s.Bulk() {
			s.bulkWeld(layers)
		} else {
			s.weld(layers)
		}
	}
	return s.res
}

func (s *Scheduler) record(b host.Block, layer int, r Reason) {
	s.recordIn(b, b.Grid(), layer, r)
}

// recordIn takes the grid explicitly for blocks that have just been removed from it.
func (s *Scheduler) recordIn(b host.Block, g host.Grid, layer int, r Reason) {
	o := Outcome{Block: b, Cell: b.Cell(), Layer: layer, Reason: r}
	if g != nil {
		o.Grid = g.ID()
	}
	s.res.Outcomes = append(s.res.Outcomes, o)
	if r.Worked() {
		s.res.Worked++
		s.res.Working = true
	}
	if s.Settings.Debug && s.Env.Debug != nil && g != nil {
		if c := r.Colour(); c != host.ColourNone {
			s.Env.Debug.RecordBox(host.CellBox(g, b.Cell()), c)
		}
	}
}

func (s *Scheduler) skipShort(b host.Block, layer int, kind string) {
	s.record(b, layer, ReasonNoResource)
	s.res.Outcomes[len(s.res.Outcomes)-1].Short = kind
}

func (s *Scheduler) deselect(b host.Block) {
	t := s.Env.Turret
	if t != nil && t.ActiveTarget() == b {
		t.DeselectTarget()
	}
}

func (s *Scheduler) retain(b host.Block) {
	if s.Settings.Cache {
		s.WorkSet.Add(b)
	}
}

func (s *Scheduler) grind(layers *scan.LayerMap) {
	amount := s.Settings.Amount
	layers.Each(func(layer int, b host.Block) bool {
		if s.res.Worked >= s.Settings.Budget {
			return false
		}
		if !host.Live(b) {
			s.record(b, layer, ReasonNotLive)
			return true
		}
		if !s.Authority.Mutates() {
			change := amount * b.IntegrityRate() / b.DisassembleRatio()
			if s.Settings.Cache && b.Integrity() > change {
				s.Authority.Predict(b.Grid(), b.Cell())
			}
			s.record(b, layer, ReasonPredicted)
			return true
		}

		m := s.Env.Mutator
		m.ApplyDamage(b, amount, s.Env.Attacker, s.Env.Inventory)
		if b.FullyDismounted() {
			g := b.Grid()
			m.DisassembleAndRemove(b, s.Env.Inventory)
			s.recordIn(b, g, layer, ReasonRemoved)
			return true
		}
		s.record(b, layer, ReasonWorked)
		s.retain(b)
		return true
	})
}

// needsOf lists what b still needs: the full breakdown for a real block, one unit of the
// primary component for a ghost.
func (s *Scheduler) needsOf(b host.Block, ghost bool) []host.Component {
	s.needs = s.needs[:0]
	if !ghost {
		s.needs = b.MissingComponents(s.needs)
		return s.needs
	}
	if p := b.PrimaryComponent(); p != "" {
		s.needs = append(s.needs, host.Component{Kind: p, Count: 1})
	}
	return s.needs
}

func (s *Scheduler) entitled(b host.Block) bool {
	gates := b.ContentGates()
	if s.Env.Identity <= 1 || len(gates) == 0 || s.Env.Entitlements == nil {
		return true
	}
	for _, id := range gates {
		if !s.Env.Entitlements.OwnsContent(id, s.Env.Identity) {
			return false
		}
	}
	return true
}

// ready applies the liveness and readiness checks shared by both weld paths.
func (s *Scheduler) ready(b host.Block, layer int) (host.Projector, bool) {
	if !host.Live(b) {
		s.record(b, layer, ReasonNotLive)
		return nil, false
	}
	proj := b.Grid().Projector()
	if proj == nil && b.FullIntegrity() && !b.Deformed() {
		s.record(b, layer, ReasonComplete)
		return nil, false
	}
	return proj, true
}

func (s *Scheduler) weld(layers *scan.LayerMap) {
	creative := s.Settings.Creative
	layers.Each(func(layer int, b host.Block) bool {
		if s.res.Worked >= s.Settings.Budget {
			return false
		}
		proj, ok := s.ready(b, layer)
		if !ok {
			return true
		}
		needs := s.needsOf(b, proj != nil)
		if !creative && len(needs) > 0 {
			if ok, short := s.books().TryPull(needs); !ok {
				s.deselect(b)
				s.skipShort(b, layer, short)
				return true
			}
		}
		if proj != nil {
			s.buildGhost(b, proj, layer)
		} else {
			s.weldBlock(b, layer)
		}
		return true
	})
}

// buildGhost turns a projected ghost into a real block.
func (s *Scheduler) buildGhost(b host.Block, proj host.Projector, layer int) {
	creative := s.Settings.Creative
	inv := s.Env.Inventory
	primary := b.PrimaryComponent()
	if !proj.CanBuild(b) {
		s.record(b, layer, ReasonCannotBuild)
		return
	}
	if !s.Authority.Mutates() {
		if !creative && inv.Amount(primary) < 1 {
			s.deselect(b)
			s.skipShort(b, layer, primary)
			return
		}
		if s.Settings.Cache && !creative {
			g, cell := host.ProjectedCell(b, proj)
			s.Authority.Predict(g, cell)
		}
		s.record(b, layer, ReasonPredicted)
		return
	}
	if !s.entitled(b) {
		s.deselect(b)
		s.record(b, layer, ReasonNotEntitled)
		return
	}
	if !creative && inv.Remove(primary, 1) < 1 {
		s.deselect(b)
		s.skipShort(b, layer, primary)
		return
	}
	g := b.Grid()
	nb, ok := s.Env.Mutator.ConstructGhost(b, s.Env.Owner, s.Env.BuiltBy)
	if !ok {
		if !creative {
			inv.Add(primary, 1)
		}
		s.Env.Log.WithFields(logrus.Fields{
			"grid": g.ID(),
			"cell": b.Cell(),
		}).Debug("ghost construction refused")
		s.record(b, layer, ReasonCannotBuild)
		return
	}
	s.recordIn(b, g, layer, ReasonBuilt)
	if !nb.FullIntegrity() {
		s.retain(nb)
	}
}

// weldBlock raises the integrity of a real block.
func (s *Scheduler) weldBlock(b host.Block, layer int) {
	creative := s.Settings.Creative
	inv := s.Env.Inventory
	m := s.Env.Mutator
	if !b.FullIntegrity() && !creative && !m.CanContinueBuild(b, inv) {
		s.deselect(b)
		s.record(b, layer, ReasonCannotContinue)
		return
	}
	amount := s.Settings.Amount
	if !s.Authority.Mutates() {
		if s.Settings.Cache && amount*b.IntegrityRate() < b.MaxIntegrity()-b.Integrity() {
			s.Authority.Predict(b.Grid(), b.Cell())
		}
		s.record(b, layer, ReasonPredicted)
		return
	}
	src := inv
	if creative {
		src = nil
	}
	m.IncreaseCompletion(b, amount, s.Env.Owner, src)
	if b.FullIntegrity() && !b.Deformed() {
		s.record(b, layer, ReasonCompleted)
		return
	}
	s.record(b, layer, ReasonWorked)
	s.retain(b)
}

type candidate struct {
	block host.Block
	proj  host.Projector
	layer int
}

// bulkWeld gathers batches of at most the remaining budget, reserves their components with a
// single pull per kind and then welds the batch. Rejected members free their share of the
// budget for the next batch.
func (s *Scheduler) bulkWeld(layers *scan.LayerMap) {
	creative := s.Settings.Creative
	remaining := s.Settings.Budget
	var (
		batch []candidate
		reqs  []ledger.Request
	)
	i, j := 0, 0
	for remaining > 0 && i <= layers.MaxLayer {
		batch = batch[:0]
		reqs = reqs[:0]

		for i <= layers.MaxLayer && len(batch) < remaining {
			layer := layers.Layer(i)
			for j < len(layer) && len(batch) < remaining {
				b := layer[j]
				j++
				proj, ok := s.ready(b, i)
				if !ok {
					continue
				}
				needs := s.needsOf(b, proj != nil)
				if proj != nil && len(needs) == 0 {
					s.record(b, i, ReasonCannotBuild)
					continue
				}
				if !creative && len(needs) > 0 && s.Failed.Has(needs[0].Kind) {
					s.deselect(b)
					s.skipShort(b, i, needs[0].Kind)
					continue
				}
				batch = append(batch, candidate{block: b, proj: proj, layer: i})
				reqs = append(reqs, ledger.Request{Needs: append([]host.Component(nil), needs...)})
			}
			if j >= len(layer) {
				i++
				j = 0
			}
		}
		if len(batch) == 0 {
			return
		}

		var res ledger.Reservation
		if !creative {
			res = s.books().Reserve(reqs)
		}
		before := s.res.Worked
		for k, c := range batch {
			if !creative && !res.Satisfied[k] {
				s.deselect(c.block)
				s.skipShort(c.block, c.layer, res.Short[k])
				continue
			}
			if c.proj != nil {
				s.buildGhost(c.block, c.proj, c.layer)
			} else {
				s.weldBlock(c.block, c.layer)
			}
		}
		remaining -= s.res.Worked - before
	}
}
