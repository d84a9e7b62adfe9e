package net

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"boardsync/internal/wire"
)

// SnapshotArchive is the coordinator's store for the latest snapshot per
// room, replayed to late joiners so they do not wait out a snapshot period.
type SnapshotArchive interface {
	SaveSnapshot(roomID string, data []byte) error
	LoadSnapshot(roomID string) ([]byte, bool, error)
	DeleteRoom(roomID string) error
}

// outbound is one frame queued for fan-out.
type outbound struct {
	data    []byte
	exclude *remote
}

// Hub relays messages between every client of one room. All membership
// mutation happens on the run goroutine; clients talk to it over channels.
type Hub struct {
	roomID string

	register   chan *remote
	unregister chan *remote
	broadcast  chan outbound

	clients map[*remote]bool
	count   atomic.Int32

	archive SnapshotArchive

	// readLimit is the silence bound on member connections, refreshed per
	// frame. The client side declares the link dead on the same bound.
	readLimit time.Duration

	done chan struct{}
	once sync.Once
}

// NewHub creates the hub for one room and starts its relay loop.
func NewHub(roomID string, archive SnapshotArchive) *Hub {
	h := &Hub{
		roomID:     roomID,
		register:   make(chan *remote),
		unregister: make(chan *remote),
		broadcast:  make(chan outbound),
		clients:    make(map[*remote]bool),
		archive:    archive,
		readLimit:  missedIntervals * HeartbeatInterval,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int32(len(h.clients)))
			log.Printf("[hub %s] client %s registered, total %d", h.roomID, c.userID, len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.stop()
				h.count.Store(int32(len(h.clients)))
				log.Printf("[hub %s] client %s unregistered, total %d", h.roomID, c.userID, len(h.clients))
			}
		case m := <-h.broadcast:
			for c := range h.clients {
				if c == m.exclude {
					continue
				}
				select {
				case c.send <- m.data:
				default:
					// Slow consumer, drop it.
					delete(h.clients, c)
					c.stop()
					h.count.Store(int32(len(h.clients)))
				}
			}
		case <-h.done:
			note, _ := json.Marshal(wire.Envelope{Type: wire.TypeRoomDeleted, RoomID: h.roomID})
			for c := range h.clients {
				select {
				case c.send <- note:
				default:
				}
				c.stop()
			}
			h.clients = make(map[*remote]bool)
			h.count.Store(0)
			return
		}
	}
}

// Shutdown pushes room_deleted to every member and stops the hub. Idempotent.
func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.done) })
}

// ClientCount returns the current number of room members.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// remote is the coordinator's view of one connected client. send stays open
// for the remote's lifetime; stopped signals the write pump to drain and
// close instead, so reply and the hub can never race on a closed channel.
type remote struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	stopped  chan struct{}
	stopOnce sync.Once
}

func newRemote(h *Hub, conn *websocket.Conn) *remote {
	return &remote{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		stopped: make(chan struct{}),
	}
}

func (c *remote) stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

// readPump routes one client's inbound frames. Frames are relayed as raw
// bytes so fields the coordinator does not interpret (location pings) pass
// through unmodified.
func (c *remote) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.stop()
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(c.hub.readLimit))
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.hub.readLimit))
		var env wire.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("[hub %s] malformed frame from %s, discarding: %v", c.hub.roomID, c.userID, err)
			continue
		}
		c.route(env, raw)
	}
}

func (c *remote) route(env wire.Envelope, raw []byte) {
	switch env.Type {
	case wire.TypeJoin:
		if env.UserID != "" {
			c.userID = env.UserID
		}
		c.reply(wire.Envelope{Type: wire.TypeJoined, RoomID: c.hub.roomID})
		if data, ok, err := c.hub.archive.LoadSnapshot(c.hub.roomID); err != nil {
			log.Printf("[hub %s] snapshot load: %v", c.hub.roomID, err)
		} else if ok {
			c.reply(wire.Envelope{Type: wire.TypeSnapshot, RoomID: c.hub.roomID, Data: data})
		}
	case wire.TypeHeartbeat:
		c.reply(wire.HeartbeatAck(time.Now().UnixMilli()))
	case wire.TypeHeartbeatAck:
		// Liveness only.
	case wire.TypeSnapshot:
		if err := c.hub.archive.SaveSnapshot(c.hub.roomID, env.Data); err != nil {
			log.Printf("[hub %s] snapshot save: %v", c.hub.roomID, err)
		}
		c.relay(raw)
	case wire.TypeStroke, wire.TypeErase, wire.TypeRestore, wire.TypeLayerOrder, wire.TypeLocation:
		c.relay(raw)
	default:
		log.Printf("[hub %s] unknown message type %q from %s, discarding", c.hub.roomID, env.Type, c.userID)
	}
}

func (c *remote) relay(raw []byte) {
	select {
	case c.hub.broadcast <- outbound{data: raw, exclude: c}:
	case <-c.hub.done:
	}
}

func (c *remote) reply(env wire.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.stopped:
	default:
	}
}

func (c *remote) writePump() {
	defer c.conn.Close()
	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.stopped:
			// Drain whatever was queued before the stop, then say goodbye.
			for {
				select {
				case message := <-c.send:
					if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}
