package net

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"boardsync/internal/state"
	"boardsync/internal/wire"
)

// Status is the transport's connection state.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusJoined
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

const (
	// HeartbeatInterval is how often each side proactively probes the
	// other. Keepalive runs in both directions; this is not strict
	// ping/pong.
	HeartbeatInterval = 15 * time.Second
	// missedIntervals of silence before the link is declared dead.
	missedIntervals = 3
	// ReconnectDelay between reconnect attempts.
	ReconnectDelay = 3 * time.Second
	// MaxReconnectAttempts before the transport gives up and goes
	// terminally disconnected.
	MaxReconnectAttempts = 5
)

var errTransportClosed = errors.New("transport closed")

// Transport is one logical bidirectional connection to a session
// coordinator: join handshake on connect, dual-direction heartbeat, bounded
// automatic reconnect, and per-event subscriber slots for everything the
// coordinator pushes down.
type Transport struct {
	url    string
	userID string
	roomID string

	dialer *websocket.Dialer

	// Timing, defaulting to the package constants. Per-instance so a
	// transport can run on a shorter clock.
	heartbeatInterval time.Duration
	silenceLimit      time.Duration
	reconnectDelay    time.Duration
	maxReconnects     int

	mu   sync.Mutex // guards conn and all writes to it
	conn *websocket.Conn

	status   atomic.Int32
	terminal atomic.Bool
	lastSeen atomic.Int64 // unix nanos of last inbound message

	done      chan struct{}
	closeOnce sync.Once

	strokes     slot[state.Stroke]
	erases      slot[string]
	restores    slot[string]
	snapshots   slot[[]byte]
	orders      slot[[]string]
	locations   slot[wire.Envelope]
	roomDeleted slot[string]
	statuses    slot[Status]
}

// NewTransport creates a transport for the given websocket URL
// (ws://host:port/ws). It does nothing until Connect.
func NewTransport(url string) *Transport {
	return &Transport{
		url:    url,
		dialer: websocket.DefaultDialer,

		heartbeatInterval: HeartbeatInterval,
		silenceLimit:      missedIntervals * HeartbeatInterval,
		reconnectDelay:    ReconnectDelay,
		maxReconnects:     MaxReconnectAttempts,

		done: make(chan struct{}),
	}
}

// Connect establishes the connection and announces the client to the room.
// It returns once the connection is open and the join announcement has been
// written; it does not wait for the joined acknowledgment. On success the
// heartbeat loop starts and runs until Close.
func (t *Transport) Connect(ctx context.Context, userID, roomID string) error {
	t.userID, t.roomID = userID, roomID
	t.setStatus(StatusConnecting)
	if err := t.dial(ctx); err != nil {
		t.setStatus(StatusDisconnected)
		return err
	}
	go t.heartbeatLoop()
	return nil
}

// dial opens the websocket, re-sends the join announcement and starts a
// fresh read loop. Used by both Connect and the reconnect path.
func (t *Transport) dial(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.touch()
	if err := t.write(wire.Join(t.userID, t.roomID)); err != nil {
		conn.Close()
		return err
	}
	t.setStatus(StatusJoined)
	go t.readLoop(conn)
	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[transport] read: %v", err)
			break
		}
		t.touch()
		var env wire.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed frame: logged and discarded, never fatal.
			log.Printf("[transport] malformed frame, discarding: %v", err)
			continue
		}
		t.dispatch(env)
		if t.terminal.Load() {
			return
		}
	}
	conn.Close()
	select {
	case <-t.done:
		return
	default:
	}
	t.reconnect()
}

func (t *Transport) dispatch(env wire.Envelope) {
	switch env.Type {
	case wire.TypeJoined:
		log.Printf("[transport] joined room %s", env.RoomID)
	case wire.TypeHeartbeat:
		// Respond immediately with our current clock.
		if err := t.write(wire.HeartbeatAck(time.Now().UnixMilli())); err != nil {
			log.Printf("[transport] heartbeat ack: %v", err)
		}
	case wire.TypeHeartbeatAck:
		// Liveness only; touch already happened.
	case wire.TypeRoomDeleted:
		if env.RoomID != "" && env.RoomID != t.roomID {
			return
		}
		log.Printf("[transport] room %s deleted, closing", t.roomID)
		t.terminate()
		t.roomDeleted.emit(env.RoomID)
	case wire.TypeStroke:
		if env.Stroke == nil {
			log.Printf("[transport] stroke message without stroke, discarding")
			return
		}
		t.strokes.emit(*env.Stroke)
	case wire.TypeErase:
		t.erases.emit(env.ID)
	case wire.TypeRestore:
		t.restores.emit(env.ID)
	case wire.TypeSnapshot:
		t.snapshots.emit([]byte(env.Data))
	case wire.TypeLayerOrder:
		t.orders.emit(env.Order)
	case wire.TypeLocation:
		t.locations.emit(env)
	default:
		log.Printf("[transport] unknown message type %q, discarding", env.Type)
	}
}

// heartbeatLoop probes the coordinator every interval and declares the link
// dead after missedIntervals of silence in either direction. Killing the
// connection here makes the read loop fail over into reconnect.
func (t *Transport) heartbeatLoop() {
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if t.Status() != StatusJoined {
				continue
			}
			silent := time.Since(time.Unix(0, t.lastSeen.Load()))
			if silent > t.silenceLimit {
				log.Printf("[transport] no traffic for %v, dropping link", silent.Round(time.Second))
				t.closeConn()
				continue
			}
			if err := t.write(wire.Heartbeat(time.Now().UnixMilli())); err != nil {
				log.Printf("[transport] heartbeat: %v", err)
			}
		}
	}
}

// reconnect retries the dial at a constant spacing up to maxReconnects
// total attempts, then gives up for good.
func (t *Transport) reconnect() {
	t.setStatus(StatusConnecting)
	attempt := 0
	op := func() error {
		select {
		case <-t.done:
			return backoff.Permanent(errTransportClosed)
		default:
		}
		attempt++
		log.Printf("[transport] reconnect attempt %d/%d", attempt, t.maxReconnects)
		return t.dial(context.Background())
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(t.reconnectDelay), uint64(t.maxReconnects-1))
	if err := backoff.Retry(op, policy); err != nil {
		log.Printf("[transport] giving up after %d attempts: %v", attempt, err)
		t.setStatus(StatusDisconnected)
	}
}

// Publish sends one message, fire-and-forget. Mid-session write failures
// are not individually surfaced to users; the reconnect loop masks them.
func (t *Transport) Publish(env wire.Envelope) error {
	return t.write(env)
}

func (t *Transport) write(env wire.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return errTransportClosed
	}
	return t.conn.WriteJSON(env)
}

func (t *Transport) closeConn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// terminate is the authoritative shutdown used by room_deleted: heartbeat
// and reconnect are cancelled before the connection drops, so no further
// probe can fire and no reconnect is attempted.
func (t *Transport) terminate() {
	t.terminal.Store(true)
	t.closeOnce.Do(func() { close(t.done) })
	t.closeConn()
	t.setStatus(StatusDisconnected)
}

// Close tears the transport down deliberately. The heartbeat ticker and any
// pending reconnect are cancelled on every exit path, so a closed transport
// can never phantom-reconnect.
func (t *Transport) Close() {
	t.closeOnce.Do(func() { close(t.done) })
	t.closeConn()
	t.setStatus(StatusDisconnected)
}

// Status returns the current connection state.
func (t *Transport) Status() Status {
	return Status(t.status.Load())
}

func (t *Transport) setStatus(s Status) {
	if Status(t.status.Swap(int32(s))) != s {
		t.statuses.emit(s)
	}
}

func (t *Transport) touch() {
	t.lastSeen.Store(time.Now().UnixNano())
}

// Subscriber slots. Each returns a deregistration func; any number of
// subscribers may coexist per slot.

func (t *Transport) OnStroke(fn func(state.Stroke)) func() { return t.strokes.add(fn) }
func (t *Transport) OnErase(fn func(string)) func()        { return t.erases.add(fn) }
func (t *Transport) OnRestore(fn func(string)) func()      { return t.restores.add(fn) }
func (t *Transport) OnSnapshot(fn func([]byte)) func()     { return t.snapshots.add(fn) }
func (t *Transport) OnLayerOrder(fn func([]string)) func() { return t.orders.add(fn) }
func (t *Transport) OnLocation(fn func(wire.Envelope)) func() {
	return t.locations.add(fn)
}
func (t *Transport) OnRoomDeleted(fn func(string)) func() { return t.roomDeleted.add(fn) }
func (t *Transport) OnStatus(fn func(Status)) func()      { return t.statuses.add(fn) }
