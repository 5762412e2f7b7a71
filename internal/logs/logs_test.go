package logs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestCapWriterStopsAfterMax(t *testing.T) {
	var buf bytes.Buffer
	cw := newCapWriter(&buf, 3)
	for i := 0; i < 10; i++ {
		if _, err := cw.Write([]byte("line\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 3 lines plus a notice, got %d", len(lines))
	}
	if !strings.Contains(lines[3], "logging stopped at 3 lines") {
		t.Fatalf("expected overflow notice, got %q", lines[3])
	}
	if !cw.Stopped() {
		t.Fatalf("expected writer to report stopped")
	}
}

func TestNewRotatesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, MaxLines: 2}

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first.Warn("one")
	first.Warn("two")
	if !first.Stopped() {
		t.Fatalf("expected cap reached after 2 lines")
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer second.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected current file plus one backup, got %d", len(entries))
	}
	raw, err := os.ReadFile(filepath.Join(dir, DefaultFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "one") {
		t.Fatalf("expected a fresh file for the second run")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Dir: t.TempDir(), Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestRecoveredLogsPhaseAndStack(t *testing.T) {
	log, hook := test.NewNullLogger()
	Recovered(log, "scan", "boom")
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.ErrorLevel {
		t.Fatalf("expected an error entry")
	}
	if e.Data["phase"] != "scan" || e.Data["panic"] != "boom" || e.Data["stack"] == "" {
		t.Fatalf("unexpected fields %v", e.Data)
	}
}
