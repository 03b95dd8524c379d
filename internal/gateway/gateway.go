// Package gateway fans live table views out to websocket subscribers. The
// feed is one-directional: every mutation of a table produces a fresh public
// view, and clients act through the HTTP surface, not the socket.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"pokerarena/internal/codec"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	maxInboundBytes = 65536
	sendBuffer      = 256
)

// Envelope is the wire frame for the feed. Seq is per table and strictly
// increasing, so a client that reconnects can tell a stale snapshot from a
// newer update.
type Envelope struct {
	Type    string          `json:"type"`
	TableID string          `json:"tableId"`
	Seq     uint64          `json:"seq"`
	Ts      int64           `json:"ts"`
	Data    codec.TableView `json:"data"`
}

const (
	envelopeSnapshot = "snapshot"
	envelopeUpdate   = "update"
)

type client struct {
	id      string
	tableID string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
}

// Hub tracks one room of subscribers per table.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[*client]struct{}
	seq      map[string]uint64
	snapshot func(tableID string) (codec.TableView, error)
}

// New builds a hub over a snapshot source, typically the manager's public
// table view.
func New(snapshot func(tableID string) (codec.TableView, error)) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*client]struct{}),
		seq:      make(map[string]uint64),
		snapshot: snapshot,
	}
}

// ServeTable upgrades the request and streams the table's feed, opening with
// a full snapshot. Unknown tables are rejected before the upgrade.
func (h *Hub) ServeTable(w http.ResponseWriter, r *http.Request, tableID string) {
	view, err := h.snapshot(tableID)
	if err != nil {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[Gateway] upgrade: %v", err)
		return
	}

	c := &client{
		id:      uuid.NewString(),
		tableID: tableID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
	c.hub = h

	h.mu.Lock()
	room := h.rooms[tableID]
	if room == nil {
		room = make(map[*client]struct{})
		h.rooms[tableID] = room
	}
	room[c] = struct{}{}
	seq := h.seq[tableID]
	size := len(room)
	h.mu.Unlock()

	log.Debugf("[Gateway] client %s watching %s, room size %d", c.id, tableID, size)

	if data, err := json.Marshal(Envelope{
		Type:    envelopeSnapshot,
		TableID: tableID,
		Seq:     seq,
		Ts:      time.Now().UnixMilli(),
		Data:    view,
	}); err == nil {
		c.send <- data
	}

	go c.writePump()
	go c.readPump()
}

// Broadcast pushes a new view to every watcher of the table. Slow clients
// lose frames rather than stalling the caller; the next frame supersedes
// anything dropped anyway.
func (h *Hub) Broadcast(tableID string, view codec.TableView) {
	h.mu.Lock()
	h.seq[tableID]++
	seq := h.seq[tableID]
	room := h.rooms[tableID]
	clients := make([]*client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}
	data, err := json.Marshal(Envelope{
		Type:    envelopeUpdate,
		TableID: tableID,
		Seq:     seq,
		Ts:      time.Now().UnixMilli(),
		Data:    view,
	})
	if err != nil {
		log.Warnf("[Gateway] marshal view for %s: %v", tableID, err)
		return
	}
	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Drop if buffer full.
		}
	}
}

// RoomSize reports the current watcher count for a table.
func (h *Hub) RoomSize(tableID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[tableID])
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.tableID]
	if room == nil {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.tableID)
	}
	log.Debugf("[Gateway] client %s left %s, room size %d", c.id, c.tableID, len(room))
}

// readPump exists to run the close/ping machinery; inbound frames carry no
// commands and are discarded.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debugf("[Gateway] read: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
