package protocol

// HELLO (client -> server): subscribes to tool reports.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// Tools limits the subscription to these tool ids. Empty means all tools.
	Tools []string `json:"tools,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	SessionID       string    `json:"session_id"`
	TickRateHz      int       `json:"tick_rate_hz"`
	Authoritative   bool      `json:"authoritative"`
	Tools           []ToolRef `json:"tools"`
}

type ToolRef struct {
	ID    string `json:"id"`
	Mode  string `json:"mode"`
	Shape string `json:"shape"`
	Rate  int    `json:"rate"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}
