package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	snap := SnapshotV1{
		Header: Header{Tick: 42, Digest: "abc"},
		Seed:   7,
		Size:   4,
		Grids: []GridV1{{
			ID: "hull",
			Blocks: []BlockV1{
				{Def: "armor", Cell: [3]int{1, 0, 2}, Integrity: 44, Mounted: []int{5}, Deformed: true},
				{Def: "crate", Cell: [3]int{-1, 0, 0}, Integrity: 70, Mounted: []int{6, 1}, Items: map[string]int{"steel": 12}},
			},
		}},
		Tools: []ToolV1{{ID: "welder-hand", Items: map[string]int{"steel": 3}}},
	}
	if err := WriteSnapshot(Path(dir, 42), snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := ReadSnapshot(Path(dir, 42))
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	snap.Header.Version = Version
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(Path(dir, 42) + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be gone, got %v", err)
	}
}

func TestLatestPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	if p, err := Latest(dir); err != nil || p != "" {
		t.Fatalf("expected no snapshot, got %q %v", p, err)
	}
	for _, tick := range []uint64{9, 120, 35} {
		if err := WriteSnapshot(Path(dir, tick), SnapshotV1{}); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.snap.zst"), []byte("x"), 0o644)
	p, err := Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if p != Path(dir, 120) {
		t.Fatalf("expected tick 120, got %s", p)
	}
}
