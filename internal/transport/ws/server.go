package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/protocol"
)

const (
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = defaultPongWait * 9 / 10
)

// Server streams tool reports to websocket subscribers.
type Server struct {
	// PongWait is how long a silent subscriber is kept. PingPeriod must be shorter so pongs
	// keep arriving. Set both before serving.
	PongWait   time.Duration
	PingPeriod time.Duration

	welcome func() protocol.WelcomeMsg
	log     logrus.FieldLogger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	dropped atomic.Uint64
}

type client struct {
	id    string
	tools map[string]bool
	out   chan []byte
}

func (c *client) wants(toolID string) bool {
	return len(c.tools) == 0 || c.tools[toolID]
}

// NewServer builds a server. welcome is called for every handshake and describes the tools
// currently running.
func NewServer(welcome func() protocol.WelcomeMsg, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		PongWait:   defaultPongWait,
		PingPeriod: defaultPingPeriod,
		welcome:    welcome,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: map[*client]struct{}{},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(conn)
		if c == nil {
			return
		}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()
		log := s.log.WithField("session", c.id)
		log.Info("subscriber joined")
		defer func() {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			log.Info("subscriber left")
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pongWait := s.PongWait
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			ping := time.NewTicker(s.PingPeriod)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						cancel()
						return
					}
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Subscribers only send pongs after the handshake; anything else is
		// ignored.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		cancel()
		<-done
	}
}

func (s *Server) handshake(conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil
	}

	w := s.welcome()
	known := map[string]bool{}
	for _, t := range w.Tools {
		known[t.ID] = true
	}
	c := &client{id: uuid.NewString(), out: make(chan []byte, 64)}
	if len(hello.Tools) > 0 {
		c.tools = map[string]bool{}
		for _, id := range hello.Tools {
			if !known[id] {
				reject(conn, protocol.ErrUnknownTool, "unknown tool "+id)
				return nil
			}
			c.tools[id] = true
		}
	}

	w.Type = protocol.TypeWelcome
	w.ProtocolVersion = protocol.Version
	w.SessionID = c.id
	if err := writeJSON(conn, w); err != nil {
		return nil
	}
	return c
}

// reject answers with a refused ACK and closes the connection.
func reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          protocol.TypeHello,
		Accepted:        false,
		Code:            code,
		Message:         msg,
	})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

// Publish fans rep out to every subscriber of its tool. Slow subscribers lose reports
// rather than stall the tick.
func (s *Server) Publish(rep protocol.TickReport) error {
	b, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.wants(rep.ToolID) {
			continue
		}
		select {
		case c.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers is the number of connected clients.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped counts reports skipped for slow subscribers.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
