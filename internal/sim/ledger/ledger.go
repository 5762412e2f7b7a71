// Package ledger aggregates the components a batch of blocks needs, replenishes each short
// kind once from the conveyor network and hands the available stock out in batch order.
package ledger

import (
	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/sim/host"
)

// FailedPulls remembers kinds whose replenishment already came back empty this tick.
type FailedPulls map[string]struct{}

func (f FailedPulls) Add(kind string) { f[kind] = struct{}{} }

func (f FailedPulls) Has(kind string) bool {
	_, ok := f[kind]
	return ok
}

func (f FailedPulls) Clear() { clear(f) }

// Ledger is rebuilt for every batch. The zero value is not usable; use New.
type Ledger struct {
	Inventory host.Inventory
	// Puller is nil for hand-held tools, which never pull.
	Puller host.Puller
	Failed FailedPulls
	Log    logrus.FieldLogger

	order    []string
	required map[string]int
}

func New(inv host.Inventory, puller host.Puller, failed FailedPulls, log logrus.FieldLogger) *Ledger {
	if failed == nil {
		failed = FailedPulls{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		Inventory: inv,
		Puller:    puller,
		Failed:    failed,
		Log:       log,
		required:  map[string]int{},
	}
}

// Add accumulates qty of kind. Malformed entries are logged and dropped.
func (l *Ledger) Add(kind string, qty int) {
	if kind == "" {
		l.Log.WithField("qty", qty).Warn("ledger: component with empty kind")
		return
	}
	if qty <= 0 {
		l.Log.WithField("kind", kind).Warn("ledger: required component is zero")
		return
	}
	if _, ok := l.required[kind]; !ok {
		l.order = append(l.order, kind)
	}
	l.required[kind] += qty
}

// Required is the accumulated quantity for kind.
func (l *Ledger) Required(kind string) int { return l.required[kind] }

// Kinds lists accumulated kinds in first-seen order.
func (l *Ledger) Kinds() []string { return append([]string(nil), l.order...) }

func (l *Ledger) Reset() {
	l.order = l.order[:0]
	clear(l.required)
}

// pull tops kind up towards required with at most one request, and returns the amount
// now held.
func (l *Ledger) pull(kind string, required int) int {
	current := l.Inventory.Amount(kind)
	diff := required - current
	if l.Puller == nil || diff <= 0 || l.Inventory.Full() || l.Failed.Has(kind) {
		return current
	}
	pulled := l.Puller.Pull(kind, diff, l.Inventory)
	if pulled < 1 {
		l.Failed.Add(kind)
		l.Log.WithFields(logrus.Fields{"kind": kind, "wanted": diff}).Debug("ledger: pull failed")
	}
	return current + pulled
}

// Replenish issues one pull per accumulated kind that is short.
func (l *Ledger) Replenish() {
	for _, kind := range l.order {
		l.pull(kind, l.required[kind])
	}
}

// TryPull checks a single block's needs, pulling as it goes. The first kind must end with at
// least one unit on hand; once it has, a later shortfall stops pulling but does not reject.
// The returned kind names the shortfall on rejection.
func (l *Ledger) TryPull(needs []host.Component) (bool, string) {
	first := true
	for _, n := range needs {
		if n.Kind == "" || n.Count <= 0 {
			l.Log.WithFields(logrus.Fields{"kind": n.Kind, "qty": n.Count}).Warn("ledger: skipping malformed component")
			continue
		}
		if l.pull(n.Kind, n.Count) < 1 {
			if first {
				return false, n.Kind
			}
			return true, ""
		}
		first = false
	}
	return true, ""
}

// Request is one block's share of a batch.
type Request struct {
	Needs []host.Component
}

// Reservation holds the per-request verdicts of Reserve, in request order.
type Reservation struct {
	Satisfied []bool
	// Short names the first kind a rejected request could not get.
	Short []string
}

func (r Reservation) Count() int {
	n := 0
	for _, ok := range r.Satisfied {
		if ok {
			n++
		}
	}
	return n
}

// Reserve aggregates the batch, replenishes each short kind once and allocates stock to
// requests in order. A request is satisfied only if every kind it needs is fully covered by
// what is left after the earlier requests.
func (l *Ledger) Reserve(batch []Request) Reservation {
	l.Reset()
	for _, r := range batch {
		for _, n := range r.Needs {
			l.Add(n.Kind, n.Count)
		}
	}
	l.Replenish()

	avail := make(map[string]int, len(l.order))
	for _, kind := range l.order {
		avail[kind] = l.Inventory.Amount(kind)
	}
	res := Reservation{
		Satisfied: make([]bool, len(batch)),
		Short:     make([]string, len(batch)),
	}
	for i, r := range batch {
		short := ""
		for _, n := range r.Needs {
			if n.Kind == "" || n.Count <= 0 {
				continue
			}
			if avail[n.Kind] < n.Count {
				short = n.Kind
				break
			}
		}
		if short != "" {
			res.Short[i] = short
			continue
		}
		for _, n := range r.Needs {
			if n.Kind == "" || n.Count <= 0 {
				continue
			}
			avail[n.Kind] -= n.Count
		}
		res.Satisfied[i] = true
	}
	l.Reset()
	return res
}
