package debugdraw

import (
	"sync"
	"testing"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

func TestRecorderDrainAndLimit(t *testing.T) {
	r := &Recorder{Limit: 3}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordBox(geom.OBB{}, host.ColourGreen)
		}()
	}
	wg.Wait()

	boxes, dropped := r.Drain()
	if len(boxes) != 3 || dropped != 2 {
		t.Fatalf("expected 3 kept and 2 dropped, got %d and %d", len(boxes), dropped)
	}
	if Count(boxes)[host.ColourGreen] != 3 {
		t.Fatalf("expected 3 green boxes")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty recorder after drain")
	}
}
