package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"toolcore.dev/internal/protocol"
)

func TestTickLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	reps := []protocol.TickReport{
		{Type: protocol.TypeReport, Tick: 1, ToolID: "welder", Worked: 2, Outcomes: []protocol.OutcomeMsg{{Grid: "hull", Reason: "worked"}}},
		{Type: protocol.TypeReport, Tick: 2, ToolID: "welder", Worked: 1, Outcomes: []protocol.OutcomeMsg{}},
	}
	for _, r := range reps {
		if err := l.Publish(r); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadTicks(dir)
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if diff := cmp.Diff(reps, got); diff != "" {
		t.Fatalf("reports (-want +got):\n%s", diff)
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "ticks")
	now := time.Date(2026, 1, 2, 10, 59, 0, 0, time.UTC)
	w.Now = func() time.Time { return now }

	if err := w.Write(map[string]int{"tick": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"tick": 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := Files(dir, "ticks")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := []string{
		filepath.Join(dir, "ticks-2026-01-02-10.jsonl.zst"),
		filepath.Join(dir, "ticks-2026-01-02-11.jsonl.zst"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
}

func TestAuditLoggerKeepsChanges(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	rep := protocol.TickReport{Tick: 4, ToolID: "grinder", Outcomes: []protocol.OutcomeMsg{
		{Grid: "hull", Cell: [3]int{1, 0, 0}, Reason: "worked"},
		{Grid: "hull", Cell: [3]int{2, 0, 0}, Reason: protocol.ReasonRemoved},
		{Grid: "hull", Cell: [3]int{3, 0, 0}, Reason: "insufficient_resource"},
	}}
	if err := l.Publish(rep); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := Files(filepath.Join(dir, "audit"), "audit")
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one audit file, got %v (%v)", files, err)
	}
	var got []AuditEntry
	if err := ReadJSONL(files[0], func(e AuditEntry) error { got = append(got, e); return nil }); err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	want := []AuditEntry{{Tick: 4, ToolID: "grinder", Grid: "hull", Cell: [3]int{2, 0, 0}, Reason: protocol.ReasonRemoved}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
}
