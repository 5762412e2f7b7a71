package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"toolcore.dev/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals v and decodes it into the generic form the validator expects.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"viewer",
	  "tools":["welder-hand"]
	}`), &hello)
	validate(compile(t, "hello.schema.json"), hello)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		TickRateHz:      5,
		Authoritative:   true,
		Tools:           []protocol.ToolRef{{ID: "welder-hand", Mode: "weld", Shape: "sphere", Rate: 3}},
	}
	validate(compile(t, "welcome.schema.json"), roundTrip(t, welcome))

	report := protocol.TickReport{
		Type:            protocol.TypeReport,
		ProtocolVersion: protocol.Version,
		Tick:            12,
		ToolID:          "grinder-turret",
		Mode:            "grind",
		Shape:           "cylinder",
		Authoritative:   true,
		Budget:          2,
		Worked:          2,
		Working:         true,
		Hits:            9,
		MaxLayer:        3,
		Retained:        1,
		Outcomes: []protocol.OutcomeMsg{
			{Grid: "hull", Cell: [3]int{0, 0, -1}, Layer: 0, Reason: "worked"},
			{Grid: "hull", Cell: [3]int{0, 0, -2}, Layer: 1, Reason: "removed"},
		},
		Targets:   []protocol.CellRef{{Grid: "hull", Cell: [3]int{2, 1, 0}}},
		Inventory: []protocol.ItemStack{{Kind: "steel", Count: 4}},
	}
	validate(compile(t, "tool_report.schema.json"), roundTrip(t, report))
}

func TestSchemas_RejectBadReport(t *testing.T) {
	s := compile(t, "tool_report.schema.json")
	var bad any
	_ = json.Unmarshal([]byte(`{
	  "type":"TOOL_REPORT","protocol_version":"1.0","tick":1,"tool_id":"t","mode":"drill",
	  "shape":"sphere","authoritative":true,"budget":1,"worked":0,"working":false,
	  "hits":0,"max_layer":0,"retained":0,"outcomes":[]
	}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("expected unknown mode rejected")
	}
}

func TestSettled(t *testing.T) {
	r := protocol.TickReport{Outcomes: []protocol.OutcomeMsg{
		{Grid: "g", Cell: [3]int{1, 0, 0}, Reason: "worked"},
		{Grid: "g", Cell: [3]int{2, 0, 0}, Reason: protocol.ReasonCompleted},
		{Grid: "g", Cell: [3]int{3, 0, 0}, Reason: protocol.ReasonRemoved},
	}}
	got := r.Settled()
	if len(got) != 2 || got[0].Cell != [3]int{2, 0, 0} || got[1].Cell != [3]int{3, 0, 0} {
		t.Fatalf("unexpected settled cells %v", got)
	}
}
