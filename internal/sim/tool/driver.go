package tool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/host"
)

// GridSource finds the grids a tool at centre could reach.
type GridSource interface {
	GridsNear(centre mgl64.Vec3, radius float64) []host.Grid
}

// Sink receives every report a driver produces.
type Sink interface {
	Publish(rep protocol.TickReport) error
}

type SinkFunc func(rep protocol.TickReport) error

func (f SinkFunc) Publish(rep protocol.TickReport) error { return f(rep) }

// Driver runs the scan and process phases of a set of tools once per tick.
type Driver struct {
	Tools    []*Tool
	Source   GridSource
	Sinks    []Sink
	Log      logrus.FieldLogger
	Interval time.Duration
	// AfterStep runs on the stepping goroutine once every report is published.
	AfterStep func(tick uint64)

	tick atomic.Uint64
}

// Step scans every tool concurrently, then processes them one at a time in order and
// publishes the reports.
func (d *Driver) Step(ctx context.Context, tick uint64) ([]protocol.TickReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := d.logger()
	scanned := make([]bool, len(d.Tools))

	// Scans never fail the group. A tool that scanned must also be processed to clear its
	// busy flag.
	var g errgroup.Group
	for i, t := range d.Tools {
		g.Go(func() error {
			var grids []host.Grid
			if d.Source != nil {
				grids = d.Source.GridsNear(t.Pose.Position, t.Reach())
			}
			err := t.Scan(grids)
			if errors.Is(err, ErrBusy) {
				log.WithField("tool", t.ID).Warn("skipping busy tool")
				return nil
			}
			scanned[i] = true
			if err != nil {
				log.WithError(err).WithField("tool", t.ID).Warn("scan failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]protocol.TickReport, 0, len(d.Tools))
	for i, t := range d.Tools {
		if !scanned[i] {
			continue
		}
		rep := t.Process(tick)
		reports = append(reports, rep)
		for _, s := range d.Sinks {
			if err := s.Publish(rep); err != nil {
				log.WithError(err).WithField("tool", t.ID).Warn("publish report")
			}
		}
	}
	d.tick.Store(tick)
	if d.AfterStep != nil {
		d.AfterStep(tick)
	}
	return reports, nil
}

// Run calls Step every Interval until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.Step(ctx, d.tick.Load()+1); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
	}
}

// Tick is the last tick stepped.
func (d *Driver) Tick() uint64 { return d.tick.Load() }

// Resume makes Run continue after tick.
func (d *Driver) Resume(tick uint64) { d.tick.Store(tick) }

func (d *Driver) logger() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}
