package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadShippedConfig(t *testing.T) {
	tun, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tun.TickRateHz != 5 || tun.TickInterval() != 200*time.Millisecond {
		t.Fatalf("expected 5Hz, got %d", tun.TickRateHz)
	}
	if len(tun.Tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tun.Tools))
	}
	if tun.Tools[1].Rate <= tun.BulkWeldThreshold {
		t.Fatalf("expected the array welder to use the bulk path")
	}
	if tun.Tools[0].Items["steel"] != 40 || tun.Tools[1].Capacity != 400 {
		t.Fatalf("expected tool stock from the file, got %+v", tun.Tools[0].Items)
	}
	if got := tun.Entitlements[76561198000000042]; len(got) != 1 || got[0] != "deluxe-pack" {
		t.Fatalf("expected the deluxe-pack grant, got %v", got)
	}
	if tun.Storage.SnapshotEveryTicks != 300 || tun.SnapshotDir() != filepath.Join("data", "snapshots") {
		t.Fatalf("unexpected snapshot settings %+v", tun.Storage)
	}
}

func TestDigestTracksChanges(t *testing.T) {
	a, _, err := Defaults().Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	b, _, _ := Defaults().Digest()
	changed := Defaults()
	changed.TickRateHz++
	c, _, _ := changed.Digest()
	if a != b || a == c || len(a) != 64 {
		t.Fatalf("expected a stable 64 char digest that changes with the tuning, got %s %s %s", a, b, c)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 20\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	tun, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tun.TickRateHz != 20 {
		t.Fatalf("expected override 20, got %d", tun.TickRateHz)
	}
	if tun.Log.MaxLines != 500 || tun.BulkWeldThreshold != 4 || tun.EntitlementTTL() != 5*time.Minute {
		t.Fatalf("expected defaults to survive, got %+v", tun)
	}
}

func TestValidateRejectsBadTools(t *testing.T) {
	tun := Defaults()
	tun.Tools = []Tool{
		{ID: "a", Mode: "weld", Shape: "sphere", Rate: 1, Radius: 1, Forward: [3]float64{0, 0, 1}},
		{ID: "a", Mode: "drill", Shape: "sphere", Rate: 1, Radius: 1, Forward: [3]float64{0, 0, 1}},
		{ID: "c", Mode: "grind", Shape: "cuboid", Rate: 1, HalfExtent: [3]float64{1, 0, 1}, Forward: [3]float64{0, 0, 1}},
	}
	err := tun.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"duplicate id", "unknown tool mode", "half_extent"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
