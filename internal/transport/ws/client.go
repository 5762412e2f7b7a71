package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"toolcore.dev/internal/protocol"
)

// Client is a report subscriber.
type Client struct {
	conn    *websocket.Conn
	Welcome protocol.WelcomeMsg
}

// Dial connects to url, sends HELLO and waits for WELCOME. A refused handshake is returned
// as an error carrying the ACK code.
func Dial(ctx context.Context, url, name string, tools []string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      name,
		Tools:           tools,
	}
	if err := writeJSON(conn, hello); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	switch base.Type {
	case protocol.TypeWelcome:
		c := &Client{conn: conn}
		if err := json.Unmarshal(msg, &c.Welcome); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return c, nil
	case protocol.TypeAck:
		var ack protocol.AckMsg
		_ = json.Unmarshal(msg, &ack)
		_ = conn.Close()
		return nil, fmt.Errorf("handshake refused: %s: %s", ack.Code, ack.Message)
	}
	_ = conn.Close()
	return nil, fmt.Errorf("unexpected %q during handshake", base.Type)
}

// Next blocks for the next report. Other message types are skipped.
func (c *Client) Next() (protocol.TickReport, error) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return protocol.TickReport{}, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeReport {
			continue
		}
		var rep protocol.TickReport
		if err := json.Unmarshal(msg, &rep); err != nil {
			return protocol.TickReport{}, err
		}
		return rep, nil
	}
}

func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	return c.conn.Close()
}
