package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/persistence/snapshot"
	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/scene"
	"toolcore.dev/internal/sim/tuning"
	"toolcore.dev/internal/transport/ws"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		ticks      = flag.Uint64("ticks", 20, "ticks to step offline")
		dump       = flag.Bool("dump", false, "dump full reports")
		only       = flag.String("tools", "", "comma separated tool ids to print (default: all)")
		follow     = flag.String("follow", "", "ws url of a running server; predict locally and reconcile against its reports")
		verbose    = flag.Bool("v", false, "log scene events to stderr")
		resume     = flag.String("resume", "", "snapshot to restore before stepping")
		saveTo     = flag.String("snapshot", "", "write a snapshot of the final state to this path")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	filter := map[string]bool{}
	var ids []string
	for _, id := range strings.Split(*only, ",") {
		if id = strings.TrimSpace(id); id != "" {
			filter[id] = true
			ids = append(ids, id)
		}
	}
	show := func(rep protocol.TickReport) {
		if len(filter) > 0 && !filter[rep.ToolID] {
			return
		}
		if *dump {
			spew.Dump(rep)
			return
		}
		printReport(rep)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		cancel()
	}()

	if *follow != "" {
		tune.Authoritative = false
		if err := runFollow(ctx, tune, log, *follow, ids, show); err != nil && ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "follow:", err)
			os.Exit(1)
		}
		return
	}

	sc, err := scene.Build(tune, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build scene:", err)
		os.Exit(1)
	}
	defer sc.Close()

	var start uint64
	if *resume != "" {
		snap, err := snapshot.ReadSnapshot(*resume)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		if err := sc.Restore(snap); err != nil {
			fmt.Fprintln(os.Stderr, "restore:", err)
			os.Exit(1)
		}
		start = snap.Header.Tick
	}

	d := sc.Driver()
	var worked, errs int
	for tick := start + 1; tick <= start+*ticks; tick++ {
		reps, err := d.Step(ctx, tick)
		if err != nil {
			break
		}
		for _, rep := range reps {
			worked += rep.Worked
			if rep.Error != "" {
				errs++
			}
			show(rep)
		}
	}
	fmt.Printf("done tick=%d tools=%d worked=%d errors=%d\n", d.Tick(), len(sc.Tools), worked, errs)

	if *saveTo != "" {
		if err := snapshot.WriteSnapshot(*saveTo, sc.Snapshot(d.Tick())); err != nil {
			fmt.Fprintln(os.Stderr, "write snapshot:", err)
			os.Exit(1)
		}
	}
}

// runFollow steps a local non-authoritative scene once per server tick and settles its
// predictions with every report the server sends.
func runFollow(ctx context.Context, tune tuning.Tuning, log logrus.FieldLogger, url string, ids []string, show func(protocol.TickReport)) error {
	sc, err := scene.Build(tune, log)
	if err != nil {
		return err
	}
	defer sc.Close()

	c, err := ws.Dial(ctx, url, "toolsim", ids)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	fmt.Printf("following %s session=%s tools=%d tick_rate=%d\n", url, c.Welcome.SessionID, len(c.Welcome.Tools), c.Welcome.TickRateHz)

	d := sc.Driver()
	var last uint64
	for {
		rep, err := c.Next()
		if err != nil {
			return err
		}
		if rep.Tick > last {
			last = rep.Tick
			if _, err := d.Step(ctx, rep.Tick); err != nil {
				return err
			}
		}
		dropped, err := sc.Reconcile(rep)
		if err != nil {
			log.WithError(err).Warn("reconcile")
			continue
		}
		show(rep)
		if dropped > 0 {
			fmt.Printf("  settled %d predictions\n", dropped)
		}
	}
}

func printReport(rep protocol.TickReport) {
	fmt.Printf("tick=%d tool=%s mode=%s hits=%d layers=%d worked=%d/%d retained=%d predicted=%d\n",
		rep.Tick, rep.ToolID, rep.Mode, rep.Hits, rep.MaxLayer, rep.Worked, rep.Budget, rep.Retained, len(rep.Predicted))
	for _, o := range rep.Outcomes {
		line := fmt.Sprintf("  %s %v layer=%d %s", o.Grid, o.Cell, o.Layer, o.Reason)
		if o.Short != "" {
			line += " short=" + o.Short
		}
		fmt.Println(line)
	}
	if rep.Error != "" {
		fmt.Printf("  error: %s\n", rep.Error)
	}
}
