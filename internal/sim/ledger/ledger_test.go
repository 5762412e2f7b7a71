package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/inventory"
)

type stubPuller struct {
	stock    map[string]int
	requests []host.Component
}

func (p *stubPuller) Pull(kind string, qty int, dst host.Inventory) int {
	p.requests = append(p.requests, host.Component{Kind: kind, Count: qty})
	n := min(qty, p.stock[kind])
	n = dst.Add(kind, n)
	p.stock[kind] -= n
	return n
}

func steel(n int) Request {
	return Request{Needs: []host.Component{{Kind: "steel", Count: n}}}
}

func TestReserveAllocatesInBatchOrder(t *testing.T) {
	inv := inventory.FromItems(0, map[string]int{"steel": 2})
	p := &stubPuller{stock: map[string]int{"steel": 1}}
	l := New(inv, p, nil, nil)

	batch := []Request{
		steel(1),
		steel(2),
		{Needs: []host.Component{{Kind: "glass", Count: 1}}},
		steel(1),
	}
	res := l.Reserve(batch)

	wantReq := []host.Component{{Kind: "steel", Count: 2}, {Kind: "glass", Count: 1}}
	if diff := cmp.Diff(wantReq, p.requests); diff != "" {
		t.Fatalf("unexpected pull requests (-want +got):\n%s", diff)
	}
	// Steel: 2 held + 1 delivered = 3 for demands 1, 2, 1.
	wantOK := []bool{true, true, false, false}
	if diff := cmp.Diff(wantOK, res.Satisfied); diff != "" {
		t.Fatalf("unexpected verdicts (-want +got):\n%s", diff)
	}
	if res.Short[3] != "steel" || res.Short[2] != "glass" {
		t.Fatalf("expected steel and glass shortfalls, got %q", res.Short)
	}
	if !l.Failed.Has("glass") || l.Failed.Has("steel") {
		t.Fatalf("expected only glass recorded as a failed pull")
	}
	if res.Count() != 2 {
		t.Fatalf("expected 2 satisfied, got %d", res.Count())
	}
}

func TestReserveOnePullPerKind(t *testing.T) {
	inv := inventory.New(0)
	p := &stubPuller{stock: map[string]int{"steel": 100}}
	l := New(inv, p, nil, nil)

	batch := make([]Request, 10)
	for i := range batch {
		batch[i] = steel(3)
	}
	res := l.Reserve(batch)
	if len(p.requests) != 1 || p.requests[0].Count != 30 {
		t.Fatalf("expected a single pull of 30, got %v", p.requests)
	}
	if res.Count() != 10 {
		t.Fatalf("expected all requests satisfied, got %d", res.Count())
	}
}

func TestFailedPullsAreNotRetried(t *testing.T) {
	inv := inventory.New(0)
	p := &stubPuller{stock: map[string]int{}}
	failed := FailedPulls{}
	l := New(inv, p, failed, nil)

	l.Reserve([]Request{steel(1)})
	l.Reserve([]Request{steel(1)})
	if ok, kind := l.TryPull([]host.Component{{Kind: "steel", Count: 1}}); ok || kind != "steel" {
		t.Fatalf("expected steel rejection, got ok=%v kind=%q", ok, kind)
	}
	if len(p.requests) != 1 {
		t.Fatalf("expected failed kind to be pulled once per tick, got %d", len(p.requests))
	}
	failed.Clear()
	l.Reserve([]Request{steel(1)})
	if len(p.requests) != 2 {
		t.Fatalf("expected pull after clearing failures, got %d", len(p.requests))
	}
}

func TestNoPullWithoutPullerOrWhenFull(t *testing.T) {
	inv := inventory.FromItems(1, map[string]int{"glass": 1})
	p := &stubPuller{stock: map[string]int{"steel": 5}}
	l := New(inv, p, nil, nil)
	if res := l.Reserve([]Request{steel(1)}); res.Satisfied[0] {
		t.Fatalf("expected rejection with a full inventory")
	}
	if len(p.requests) != 0 {
		t.Fatalf("expected no pull into a full inventory")
	}

	hand := New(inventory.New(0), nil, nil, nil)
	if res := hand.Reserve([]Request{steel(1)}); res.Satisfied[0] {
		t.Fatalf("expected hand tool without stock to be rejected")
	}
}

func TestTryPullFirstKindRule(t *testing.T) {
	inv := inventory.FromItems(0, map[string]int{"steel": 1})
	l := New(inv, nil, nil, nil)

	ok, _ := l.TryPull([]host.Component{{Kind: "steel", Count: 4}, {Kind: "motor", Count: 1}})
	if !ok {
		t.Fatalf("expected acceptance when the first kind has stock")
	}
	ok, kind := l.TryPull([]host.Component{{Kind: "motor", Count: 1}, {Kind: "steel", Count: 1}})
	if ok || kind != "motor" {
		t.Fatalf("expected rejection on missing first kind, got ok=%v kind=%q", ok, kind)
	}
}

func TestZeroQuantityIsLoggedAndSkipped(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	inv := inventory.FromItems(0, map[string]int{"steel": 1})
	l := New(inv, nil, nil, log)

	res := l.Reserve([]Request{{Needs: []host.Component{{Kind: "glass", Count: 0}, {Kind: "steel", Count: 1}}}})
	if !res.Satisfied[0] {
		t.Fatalf("expected zero-quantity entry to be ignored")
	}
	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.WarnLevel {
		t.Fatalf("expected one warning, got %d entries", len(hook.Entries))
	}
}
