package scene

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/tuning"
)

func loadScene(t *testing.T) *Scene {
	t.Helper()
	tun, err := tuning.Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	log, _ := test.NewNullLogger()
	s, err := Build(tun, log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestShippedSceneRuns(t *testing.T) {
	s := loadScene(t)
	if len(s.Tools) != 4 || s.Tool("welder-array") == nil {
		t.Fatalf("expected the four configured tools, got %d", len(s.Tools))
	}

	var reports []protocol.TickReport
	d := s.Driver()
	for tick := uint64(1); tick <= 10; tick++ {
		reps, err := d.Step(context.Background(), tick)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if len(reps) != len(s.Tools) {
			t.Fatalf("tick %d: expected %d reports, got %d", tick, len(s.Tools), len(reps))
		}
		reports = append(reports, reps...)
	}

	total := 0
	for _, r := range reports {
		if r.Error != "" {
			t.Fatalf("tool %s tick %d: %s", r.ToolID, r.Tick, r.Error)
		}
		if r.Worked > r.Budget {
			t.Fatalf("tool %s tick %d: worked %d over budget %d", r.ToolID, r.Tick, r.Worked, r.Budget)
		}
		total += r.Worked
	}
	if total == 0 {
		t.Fatalf("expected some work across ten ticks")
	}
}

func TestWelcomeListsTools(t *testing.T) {
	s := loadScene(t)
	w := s.Welcome()
	if w.Type != protocol.TypeWelcome || len(w.Tools) != 4 {
		t.Fatalf("unexpected welcome %+v", w)
	}
	if w.Tools[2].ID != "grinder-turret" || w.Tools[2].Mode != "grind" {
		t.Fatalf("unexpected tool ref %+v", w.Tools[2])
	}
	if _, err := s.Reconcile(protocol.TickReport{ToolID: "missing"}); err == nil {
		t.Fatalf("expected error for an unknown tool")
	}
}
