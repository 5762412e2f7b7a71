// Package tool ties a tool's definition, pose and inventory to the scan and work phases it
// runs every tick.
package tool

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/debugdraw"
	"toolcore.dev/internal/logs"
	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/inventory"
	"toolcore.dev/internal/sim/scan"
	"toolcore.dev/internal/sim/work"
)

var ErrBusy = errors.New("tool: previous tick still in progress")

// TargetSlot is the turret's current target.
type TargetSlot struct {
	active host.Block
}

func (s *TargetSlot) ActiveTarget() host.Block { return s.active }
func (s *TargetSlot) DeselectTarget()          { s.active = nil }
func (s *TargetSlot) Select(b host.Block)      { s.active = b }

// Deps are the collaborators a tool needs from its host.
type Deps struct {
	Mutator      host.Mutator
	Entitlements host.Entitlements
	// Puller is used only by block tools.
	Puller host.Puller
	Log    logrus.FieldLogger
}

type Tool struct {
	ID     string
	Def    Definition
	Values Values
	Pose   Pose

	Inventory *inventory.Inventory
	Turret    *TargetSlot
	Draw      *debugdraw.Recorder

	session Session
	log     logrus.FieldLogger
	scanner *scan.Scanner
	sched   *work.Scheduler
	layers  *scan.LayerMap
	grids   []host.Grid
	targets []host.Block
	busy    atomic.Bool

	hits     int
	maxLayer int
	scanErr  error
	boxes    []debugdraw.Box
}

// New builds a tool. An empty id is replaced by a random one.
func New(id string, def Definition, vals Values, pose Pose, s Session, inv *inventory.Inventory, deps Deps) *Tool {
	if id == "" {
		id = uuid.NewString()
	}
	if inv == nil {
		inv = inventory.New(0)
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("tool", id)

	t := &Tool{
		ID:        id,
		Def:       def,
		Values:    vals,
		Pose:      pose,
		Inventory: inv,
		Draw:      &debugdraw.Recorder{Limit: 4096},
		session:   s,
		log:       log,
		layers:    scan.NewLayerMap(),
	}
	var debug host.DebugSink
	if def.Debug {
		debug = t.Draw
	}
	t.scanner = scan.NewScanner(scan.Filter{
		Mode:          def.Mode,
		UseWorkColour: def.UseWorkColour,
		WorkColour:    def.WorkColour,
	}, debug)

	env := work.Env{
		Inventory:    inv,
		Entitlements: deps.Entitlements,
		Mutator:      deps.Mutator,
		Debug:        debug,
		Log:          log,
		Attacker:     id,
	}
	if def.Block {
		env.Puller = deps.Puller
	}
	if def.Turret {
		t.Turret = &TargetSlot{}
		env.Turret = t.Turret
	}
	t.sched = work.New(work.Settings{
		Mode:          def.Mode,
		Budget:        def.Rate,
		Amount:        s.Amount(def.Mode, vals.Speed),
		Cache:         def.CacheBlocks,
		Debug:         def.Debug,
		Creative:      s.Creative,
		BulkThreshold: s.BulkThreshold,
	}, env, work.Authority{Authoritative: s.Authoritative})
	return t
}

// SetOwner sets the identity used for ownership and entitlement checks.
func (t *Tool) SetOwner(owner int64, identity uint64) {
	t.sched.Env.Owner = owner
	t.sched.Env.BuiltBy = owner
	t.sched.Env.Identity = identity
}

func (t *Tool) Scheduler() *work.Scheduler { return t.sched }

func (t *Tool) Busy() bool { return t.busy.Load() }

// Reach is how far from its position the tool can affect anything.
func (t *Tool) Reach() float64 {
	r := t.Def.Volume(t.Values, t.Pose).BoundingRadius
	if t.Def.Turret && t.Def.TargetRange > r {
		r = t.Def.TargetRange
	}
	return r
}

// Targets lists the turret candidates of the last scan, farthest first.
func (t *Tool) Targets() []host.Block { return t.targets }

// Boxes returns the debug boxes drawn during the last processed tick.
func (t *Tool) Boxes() []debugdraw.Box { return t.boxes }

// Scan collects this tick's hits from grids. It only reads grid state and may run off the
// driver goroutine. Panics are logged and leave whatever was collected so far.
func (t *Tool) Scan(grids []host.Grid) (err error) {
	if !t.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer func() {
		if r := recover(); r != nil {
			logs.Recovered(t.log, "scan", r)
			err = fmt.Errorf("tool %s: scan: %v", t.ID, r)
		}
		t.scanErr = err
		t.hits = t.layers.Len()
		t.maxLayer = t.layers.MaxLayer
	}()

	t.grids = t.grids[:0]
	for _, g := range grids {
		if g == nil || t.Def.Mode == host.ModeGrind && g.Projector() != nil {
			continue
		}
		t.grids = append(t.grids, g)
	}
	if t.Def.Turret {
		t.scanTargets()
	}
	t.scanner.Exclude(t.sched.Retained())
	if err := t.scanner.ScanInto(t.layers, t.Def.Volume(t.Values, t.Pose), t.grids); err != nil {
		return fmt.Errorf("tool %s: %w", t.ID, err)
	}
	return nil
}

// scanTargets refreshes the turret's candidate list and, when it has no live target, aims at
// the first candidate.
func (t *Tool) scanTargets() {
	t.scanner.Exclude(nil)
	m, err := t.scanner.ScanTargets(t.Pose.Position, t.Def.TargetRange, t.grids)
	if err != nil {
		t.targets = nil
		return
	}
	t.targets = scan.Targets(m)
	if host.Live(t.Turret.ActiveTarget()) {
		t.aim(t.Turret.ActiveTarget())
		return
	}
	t.Turret.DeselectTarget()
	if len(t.targets) > 0 {
		t.Turret.Select(t.targets[0])
		t.aim(t.targets[0])
	}
}

func (t *Tool) aim(b host.Block) {
	world := b.Grid().LocalToWorld(b.Cell().Vec3())
	d := world.Sub(t.Pose.Position)
	if d.Len() > 1e-9 {
		t.Pose.Forward = d.Normalize()
		if mgl64.FloatEqual(mgl64.Abs(t.Pose.Up.Dot(t.Pose.Forward)), t.Pose.Up.Len()) {
			t.Pose.Up = mgl64.Vec3{1, 0, 0}
		}
	}
}

// Process applies this tick's work. It must run on the driver goroutine. The busy flag is
// cleared even if processing panics.
func (t *Tool) Process(tick uint64) (rep protocol.TickReport) {
	defer t.busy.Store(false)
	rep = protocol.TickReport{
		Type:            protocol.TypeReport,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		ToolID:          t.ID,
		Mode:            t.Def.Mode.String(),
		Shape:           t.Def.Shape.String(),
		Authoritative:   t.session.Authoritative,
		Budget:          t.Def.Rate,
		Hits:            t.hits,
		MaxLayer:        t.maxLayer,
	}
	if t.scanErr != nil {
		rep.Error = t.scanErr.Error()
	}
	defer func() {
		if r := recover(); r != nil {
			logs.Recovered(t.log, "process", r)
			rep.Error = fmt.Sprintf("process: %v", r)
			t.layers.Reset()
		}
		t.finish(&rep)
	}()

	if len(t.grids) == 0 {
		t.sched.WorkSet.Clear()
	}
	res := t.sched.Process(t.layers)
	rep.Worked = res.Worked
	rep.Working = res.Working
	rep.Outcomes = make([]protocol.OutcomeMsg, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		rep.Outcomes = append(rep.Outcomes, protocol.OutcomeMsg{
			Grid:   o.Grid,
			Cell:   [3]int{o.Cell.X, o.Cell.Y, o.Cell.Z},
			Layer:  o.Layer,
			Reason: o.Reason.String(),
			Short:  o.Short,
		})
	}
	return rep
}

func (t *Tool) finish(rep *protocol.TickReport) {
	rep.Retained = t.sched.WorkSet.Len()
	for _, k := range t.sched.Authority.Predictions.Keys() {
		rep.Predicted = append(rep.Predicted, protocol.CellRef{Grid: k.Grid, Cell: [3]int{k.Cell.X, k.Cell.Y, k.Cell.Z}})
	}
	for _, b := range t.targets {
		if g := b.Grid(); g != nil {
			c := b.Cell()
			rep.Targets = append(rep.Targets, protocol.CellRef{Grid: g.ID(), Cell: [3]int{c.X, c.Y, c.Z}})
		}
	}
	for _, it := range t.Inventory.Items() {
		rep.Inventory = append(rep.Inventory, protocol.ItemStack{Kind: it.Kind, Count: it.Count})
	}
	boxes, dropped := t.Draw.Drain()
	if dropped > 0 {
		t.log.WithField("dropped", dropped).Debug("debug boxes over limit")
	}
	t.boxes = boxes
	rep.DrawBoxes = len(boxes)
}

// Reconcile applies an authoritative report to this tool's predictions.
func (t *Tool) Reconcile(rep protocol.TickReport) int {
	settled := rep.Settled()
	if len(settled) == 0 {
		return 0
	}
	keys := make([]work.Key, 0, len(settled))
	for _, c := range settled {
		keys = append(keys, work.Key{Grid: c.Grid, Cell: cellOf(c.Cell)})
	}
	return t.sched.Authority.Predictions.Reconcile(keys)
}

func cellOf(c [3]int) geom.Vec3i { return geom.Vec3i{X: c[0], Y: c[1], Z: c[2]} }
