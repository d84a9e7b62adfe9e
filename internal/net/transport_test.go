package net

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/internal/state"
	"boardsync/internal/wire"
)

// coordinatorStub accepts websocket connections, records every inbound
// envelope and lets tests push frames down to the client.
type coordinatorStub struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     []*websocket.Conn
	dialCount atomic.Int32

	// attempts counts every handshake request, accepted or not; refuse
	// rejects new handshakes so reconnect attempts can be counted.
	attempts atomic.Int32
	refuse   atomic.Bool

	received chan wire.Envelope
}

func newCoordinatorStub(t *testing.T) (*coordinatorStub, *Transport) {
	cs := &coordinatorStub{
		t:        t,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		received: make(chan wire.Envelope, 64),
	}
	srv := httptest.NewServer(http.HandlerFunc(cs.handle))
	t.Cleanup(srv.Close)
	return cs, NewTransport("ws" + strings.TrimPrefix(srv.URL, "http"))
}

func (cs *coordinatorStub) handle(w http.ResponseWriter, r *http.Request) {
	cs.attempts.Add(1)
	if cs.refuse.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := cs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	cs.mu.Lock()
	cs.conns = append(cs.conns, conn)
	cs.mu.Unlock()
	cs.dialCount.Add(1)
	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		cs.received <- env
	}
}

func (cs *coordinatorStub) push(env wire.Envelope) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	require.NotEmpty(cs.t, cs.conns)
	conn := cs.conns[len(cs.conns)-1]
	require.NoError(cs.t, conn.WriteJSON(env))
}

func (cs *coordinatorStub) pushRaw(data string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	require.NotEmpty(cs.t, cs.conns)
	conn := cs.conns[len(cs.conns)-1]
	require.NoError(cs.t, conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

func (cs *coordinatorStub) dropClient() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conns[len(cs.conns)-1].Close()
}

func (cs *coordinatorStub) expect(typ wire.Type) wire.Envelope {
	cs.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-cs.received:
			if env.Type == typ {
				return env
			}
		case <-deadline:
			cs.t.Fatalf("timed out waiting for %q", typ)
		}
	}
}

func TestConnectSendsJoin(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	assert.Equal(t, StatusJoined, tr.Status())

	join := cs.expect(wire.TypeJoin)
	assert.Equal(t, "alice", join.UserID)
	assert.Equal(t, "room-1", join.RoomID)
}

func TestConnectFailsWhenCoordinatorUnreachable(t *testing.T) {
	tr := NewTransport("ws://127.0.0.1:1/ws")
	defer tr.Close()

	err := tr.Connect(context.Background(), "alice", "room-1")
	assert.Error(t, err)
	assert.Equal(t, StatusDisconnected, tr.Status())
}

func TestInboundHeartbeatGetsImmediateAck(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()
	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.push(wire.Heartbeat(time.Now().UnixMilli()))
	ack := cs.expect(wire.TypeHeartbeatAck)
	assert.NotZero(t, ack.Timestamp)
}

func TestSubscriberSlotsDispatchAndDeregister(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()

	first := make(chan state.Stroke, 4)
	second := make(chan state.Stroke, 4)
	tr.OnStroke(func(s state.Stroke) { first <- s })
	unsub := tr.OnStroke(func(s state.Stroke) { second <- s })

	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.push(wire.Envelope{Type: wire.TypeStroke, Stroke: &state.Stroke{ID: "s1", OwnerID: "bob", Tool: state.ToolFreehand}})
	assert.Equal(t, "s1", (<-first).ID)
	assert.Equal(t, "s1", (<-second).ID, "both subscribers hear the event")

	unsub()
	cs.push(wire.Envelope{Type: wire.TypeStroke, Stroke: &state.Stroke{ID: "s2", OwnerID: "bob", Tool: state.ToolFreehand}})
	assert.Equal(t, "s2", (<-first).ID)
	select {
	case s := <-second:
		t.Fatalf("deregistered subscriber still got %s", s.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMalformedFrameIsDiscardedNotFatal(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()

	strokes := make(chan state.Stroke, 1)
	tr.OnStroke(func(s state.Stroke) { strokes <- s })
	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.pushRaw("{this is not json")
	cs.push(wire.Envelope{Type: wire.TypeStroke, Stroke: &state.Stroke{ID: "after", OwnerID: "bob", Tool: state.ToolFreehand}})

	select {
	case s := <-strokes:
		assert.Equal(t, "after", s.ID, "connection survived the bad frame")
	case <-time.After(2 * time.Second):
		t.Fatal("stroke after malformed frame never arrived")
	}
}

func TestReconnectResendsJoin(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()
	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.dropClient()

	// The first reconnect attempt fires without delay and re-announces.
	rejoin := cs.expect(wire.TypeJoin)
	assert.Equal(t, "alice", rejoin.UserID)
	assert.Equal(t, "room-1", rejoin.RoomID)
	assert.GreaterOrEqual(t, cs.dialCount.Load(), int32(2))
}

func TestLocationSlotDispatches(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()

	locations := make(chan wire.Envelope, 1)
	tr.OnLocation(func(env wire.Envelope) { locations <- env })
	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.push(wire.Envelope{Type: wire.TypeLocation, UserID: "bob", UserName: "Bob", X: 0, Y: -7})
	select {
	case env := <-locations:
		assert.Equal(t, "bob", env.UserID)
		assert.Equal(t, "Bob", env.UserName)
		assert.Equal(t, 0.0, env.X)
		assert.Equal(t, -7.0, env.Y)
	case <-time.After(2 * time.Second):
		t.Fatal("location ping never surfaced")
	}
}

func TestSilenceDeclaresLinkDead(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()
	tr.heartbeatInterval = 10 * time.Millisecond
	tr.silenceLimit = 30 * time.Millisecond

	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	// The stub never answers, so the silence bound trips, the link is
	// dropped and the reconnect path re-announces.
	rejoin := cs.expect(wire.TypeJoin)
	assert.Equal(t, "alice", rejoin.UserID)
	assert.GreaterOrEqual(t, cs.dialCount.Load(), int32(2))
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()
	tr.reconnectDelay = 10 * time.Millisecond

	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.refuse.Store(true)
	cs.dropClient()

	require.Eventually(t, func() bool {
		return tr.Status() == StatusDisconnected
	}, 2*time.Second, 10*time.Millisecond, "retries exhaust into terminal disconnect")

	// One accepted handshake plus exactly MaxReconnectAttempts refusals,
	// and no further dialing once given up.
	assert.Equal(t, int32(1+MaxReconnectAttempts), cs.attempts.Load())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1+MaxReconnectAttempts), cs.attempts.Load())
}

func TestRoomDeletedIsTerminal(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()

	deleted := make(chan string, 1)
	tr.OnRoomDeleted(func(room string) { deleted <- room })
	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.push(wire.Envelope{Type: wire.TypeRoomDeleted, RoomID: "room-1"})
	select {
	case room := <-deleted:
		assert.Equal(t, "room-1", room)
	case <-time.After(2 * time.Second):
		t.Fatal("room_deleted never surfaced")
	}
	assert.Equal(t, StatusDisconnected, tr.Status())

	// Authoritative deletion overrides reconnect: no new dial, no frames.
	dials := cs.dialCount.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, dials, cs.dialCount.Load())
	select {
	case env := <-cs.received:
		t.Fatalf("client still sent %q after room deletion", env.Type)
	default:
	}
}

func TestRoomDeletedForOtherRoomIgnored(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()
	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	cs.push(wire.Envelope{Type: wire.TypeRoomDeleted, RoomID: "someone-elses-room"})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StatusJoined, tr.Status())
}

func TestCloseIsDeliberateNoReconnect(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	tr.Close()
	assert.Equal(t, StatusDisconnected, tr.Status())

	dials := cs.dialCount.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, dials, cs.dialCount.Load(), "no phantom reconnect after deliberate close")

	assert.Error(t, tr.Publish(wire.Heartbeat(0)))
}

func TestStatusSubscriber(t *testing.T) {
	cs, tr := newCoordinatorStub(t)
	defer tr.Close()

	var mu sync.Mutex
	var seen []Status
	tr.OnStatus(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, tr.Connect(context.Background(), "alice", "room-1"))
	cs.expect(wire.TypeJoin)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusConnecting, StatusJoined}, seen)
}
