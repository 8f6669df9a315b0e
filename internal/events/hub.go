// Package events broadcasts simulation events to websocket listeners. Each
// listener subscribes to one world; events for a world fan out to all of its
// subscribers as JSON frames.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/hearth/internal/sim"
)

const (
	writeWait = 10 * time.Second

	// Per-subscriber outbound buffer; subscribers that fall this far
	// behind are dropped rather than stalling the wave.
	sendBuffer = 64
)

// frame is the wire envelope: the event plus its world.
type frame struct {
	WorldID string `json:"world_id"`
	sim.Event
}

// Hub implements sim.Sink over websocket connections grouped by world.
type Hub struct {
	mu     sync.RWMutex
	worlds map[string]map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{worlds: make(map[string]map[*subscriber]struct{})}
}

// Publish sends an event to every subscriber of the world. Non-blocking:
// subscribers with full buffers are disconnected.
func (h *Hub) Publish(worldID string, ev sim.Event) {
	data, err := json.Marshal(frame{WorldID: worldID, Event: ev})
	if err != nil {
		slog.Error("event marshal failed", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.worlds[worldID]))
	for s := range h.worlds[worldID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.send <- data:
		default:
			slog.Warn("subscriber too slow, dropping", "world", worldID)
			h.remove(worldID, s)
		}
	}
}

// Attach registers a websocket connection as a listener for one world and
// services it until the connection drops. Blocks; call from the connection's
// handler goroutine.
func (h *Hub) Attach(worldID string, conn *websocket.Conn) {
	s := &subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.worlds[worldID] == nil {
		h.worlds[worldID] = make(map[*subscriber]struct{})
	}
	h.worlds[worldID][s] = struct{}{}
	h.mu.Unlock()
	slog.Info("listener attached", "world", worldID)

	// Reader: we expect no client frames, but reading surfaces closes.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.close()
				return
			}
		}
	}()

	for {
		select {
		case <-s.done:
			h.remove(worldID, s)
			return
		case data := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(worldID, s)
				return
			}
		}
	}
}

// Subscribers returns the listener count for a world.
func (h *Hub) Subscribers(worldID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.worlds[worldID])
}

func (h *Hub) remove(worldID string, s *subscriber) {
	h.mu.Lock()
	if subs, ok := h.worlds[worldID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.worlds, worldID)
		}
	}
	h.mu.Unlock()
	s.close()
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
