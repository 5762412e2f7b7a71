package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/sim/scene"
	"toolcore.dev/internal/sim/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		slice      = flag.Int("y", 0, "world Y of the drawn slice")
		paused     = flag.Bool("paused", false, "start paused")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	sc, err := scene.Build(tune, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build scene:", err)
		os.Exit(1)
	}
	defer sc.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "screen init:", err)
		os.Exit(1)
	}
	defer screen.Fini()

	v := &view{screen: screen, slice: *slice, paused: *paused}
	if len(sc.Tools) > 0 {
		v.origin = sc.Tools[0].Pose.Position
	}

	d := sc.Driver()
	var tick uint64
	step := func() {
		tick++
		reps, err := d.Step(context.Background(), tick)
		if err == nil {
			v.last = reps
		}
	}

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(tune.TickInterval())
	defer ticker.Stop()
	v.render(sc, tick)
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				quit, once := v.handleKey(ev.Key(), ev.Rune())
				if quit {
					return
				}
				if once {
					step()
				}
			case *tcell.EventResize:
				screen.Sync()
			}
			v.render(sc, tick)
		case <-ticker.C:
			if v.paused {
				continue
			}
			step()
			v.render(sc, tick)
		}
	}
}
