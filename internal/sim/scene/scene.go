// Package scene assembles the demo voxel world and the tools of a tuning file into a runnable
// simulation.
package scene

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/entitlement"
	"toolcore.dev/internal/sim/inventory"
	"toolcore.dev/internal/sim/tool"
	"toolcore.dev/internal/sim/tuning"
	"toolcore.dev/internal/sim/voxel"
)

type Scene struct {
	Tuning       tuning.Tuning
	Demo         *voxel.Demo
	Tools        []*tool.Tool
	Entitlements *entitlement.Checker

	log logrus.FieldLogger
}

// Build lays out the demo world and one tool per tuning entry.
func Build(t tuning.Tuning, log logrus.FieldLogger) (*Scene, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	grants := entitlement.NewStatic()
	for identity, ids := range t.Entitlements {
		grants.Grant(identity, ids...)
	}
	checker, err := entitlement.New(grants, t.EntitlementTTL(), log)
	if err != nil {
		return nil, err
	}

	s := &Scene{
		Tuning:       t,
		Demo:         voxel.BuildDemo(t.Demo.Seed, t.Demo.Size),
		Entitlements: checker,
		log:          log,
	}
	session := tool.SessionFromTuning(t)
	for _, tt := range t.Tools {
		def, vals, pose, err := tool.FromTuning(tt)
		if err != nil {
			checker.Close()
			return nil, err
		}
		inv := inventory.FromItems(tt.Capacity, tt.Items)
		tl := tool.New(tt.ID, def, vals, pose, session, inv, tool.Deps{
			Mutator:      s.Demo.Mutator,
			Entitlements: checker,
			Puller:       s.Demo.Network,
			Log:          log,
		})
		tl.SetOwner(tt.Owner, tt.Identity)
		s.Tools = append(s.Tools, tl)
	}
	log.WithFields(logrus.Fields{
		"tools":         len(s.Tools),
		"grids":         len(s.Demo.World.Grids()),
		"authoritative": t.Authoritative,
	}).Info("scene ready")
	return s, nil
}

// Driver returns a driver stepping every tool of the scene at the tuned rate.
func (s *Scene) Driver(sinks ...tool.Sink) *tool.Driver {
	return &tool.Driver{
		Tools:    s.Tools,
		Source:   s.Demo.World,
		Sinks:    sinks,
		Log:      s.log,
		Interval: s.Tuning.TickInterval(),
	}
}

func (s *Scene) Tool(id string) *tool.Tool {
	for _, t := range s.Tools {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Welcome describes the scene to a new subscriber.
func (s *Scene) Welcome() protocol.WelcomeMsg {
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		TickRateHz:      s.Tuning.TickRateHz,
		Authoritative:   s.Tuning.Authoritative,
	}
	for _, t := range s.Tools {
		w.Tools = append(w.Tools, protocol.ToolRef{
			ID:    t.ID,
			Mode:  t.Def.Mode.String(),
			Shape: t.Def.Shape.String(),
			Rate:  t.Def.Rate,
		})
	}
	return w
}

// Reconcile forwards an authoritative report to the matching local tool.
func (s *Scene) Reconcile(rep protocol.TickReport) (int, error) {
	t := s.Tool(rep.ToolID)
	if t == nil {
		return 0, fmt.Errorf("scene: no tool %q", rep.ToolID)
	}
	return t.Reconcile(rep), nil
}

func (s *Scene) Close() {
	if s.Entitlements != nil {
		s.Entitlements.Close()
	}
}
