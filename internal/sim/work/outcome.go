package work

import (
	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/host"
)

// Reason records why the scheduler did or did not work on a block.
type Reason uint8

const (
	ReasonWorked Reason = iota + 1
	ReasonCompleted
	ReasonBuilt
	ReasonRemoved
	// ReasonPredicted is work counted by a non-authoritative tool without mutating anything.
	ReasonPredicted

	ReasonNotLive
	ReasonComplete
	ReasonNoResource
	ReasonCannotBuild
	ReasonNotEntitled
	ReasonCannotContinue
)

var reasonNames = map[Reason]string{
	ReasonWorked:         "worked",
	ReasonCompleted:      "completed",
	ReasonBuilt:          "built",
	ReasonRemoved:        "removed",
	ReasonPredicted:      "predicted",
	ReasonNotLive:        "not_live",
	ReasonComplete:       "already_complete",
	ReasonNoResource:     "insufficient_resource",
	ReasonCannotBuild:    "cannot_build",
	ReasonNotEntitled:    "not_entitled",
	ReasonCannotContinue: "cannot_continue",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "unknown"
}

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Worked reports whether the reason counts against the budget.
func (r Reason) Worked() bool {
	return r >= ReasonWorked && r <= ReasonPredicted
}

// Colour is the debug colour drawn for the reason.
func (r Reason) Colour() host.Colour {
	switch r {
	case ReasonWorked, ReasonCompleted, ReasonBuilt:
		return host.ColourGreen
	case ReasonRemoved:
		return host.ColourGreenYellow
	case ReasonNotLive:
		return host.ColourRed
	case ReasonComplete:
		return host.ColourWhite
	case ReasonNoResource:
		return host.ColourPink
	case ReasonCannotBuild:
		return host.ColourYellow
	case ReasonNotEntitled:
		return host.ColourGold
	case ReasonCannotContinue:
		return host.ColourBlue
	default:
		return host.ColourNone
	}
}

type Outcome struct {
	Block  host.Block `json:"-"`
	Grid   string     `json:"grid"`
	Cell   geom.Vec3i `json:"cell"`
	Layer  int        `json:"layer"`
	Reason Reason     `json:"reason"`
	// Short names the missing component kind for ReasonNoResource.
	Short string `json:"short,omitempty"`
}

type Result struct {
	Worked   int
	Working  bool
	Outcomes []Outcome
}

// Count returns how many outcomes carry reason r.
func (r Result) Count(reason Reason) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Reason == reason {
			n++
		}
	}
	return n
}
