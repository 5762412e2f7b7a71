package protocol

// Outcome reasons that end a block's work, plus ReasonBuilt for a ghost turned into a
// real block.
const (
	ReasonCompleted = "completed"
	ReasonRemoved   = "removed"
	ReasonBuilt     = "built"
)

// TOOL_REPORT (server -> client): one tool's tick.
type TickReport struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	ToolID          string `json:"tool_id"`
	Mode            string `json:"mode"`
	Shape           string `json:"shape"`
	Authoritative   bool   `json:"authoritative"`

	Budget   int  `json:"budget"`
	Worked   int  `json:"worked"`
	Working  bool `json:"working"`
	Hits     int  `json:"hits"`
	MaxLayer int  `json:"max_layer"`
	Retained int  `json:"retained"`

	Outcomes  []OutcomeMsg `json:"outcomes"`
	Predicted []CellRef    `json:"predicted,omitempty"`
	Targets   []CellRef    `json:"targets,omitempty"`
	Inventory []ItemStack  `json:"inventory,omitempty"`
	DrawBoxes int          `json:"draw_boxes,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type CellRef struct {
	Grid string `json:"grid"`
	Cell [3]int `json:"cell"`
}

type OutcomeMsg struct {
	Grid   string `json:"grid"`
	Cell   [3]int `json:"cell"`
	Layer  int    `json:"layer"`
	Reason string `json:"reason"`
	Short  string `json:"short,omitempty"`
}

type ItemStack struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Settled lists the cells whose work the authority finished this tick. Clients drop their
// predictions for them.
func (r TickReport) Settled() []CellRef {
	var out []CellRef
	for _, o := range r.Outcomes {
		if o.Reason == ReasonCompleted || o.Reason == ReasonRemoved {
			out = append(out, CellRef{Grid: o.Grid, Cell: o.Cell})
		}
	}
	return out
}
