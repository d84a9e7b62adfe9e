// Package wire defines the JSON messages exchanged between clients and the
// session coordinator. Every message is one Envelope; unused optional
// fields are omitted from the encoding.
package wire

import (
	"encoding/json"

	"boardsync/internal/state"
)

// Type tags an Envelope.
type Type string

const (
	TypeJoin         Type = "join"
	TypeJoined       Type = "joined"
	TypeHeartbeat    Type = "heartbeat"
	TypeHeartbeatAck Type = "heartbeat_ack"
	TypeRoomDeleted  Type = "room_deleted"
	TypeStroke       Type = "stroke"
	TypeErase        Type = "erase"
	TypeRestore      Type = "restore"
	TypeSnapshot     Type = "snapshot"
	TypeLayerOrder   Type = "layer_order"
	TypeLocation     Type = "location"
)

// Envelope is the single wire message shape.
type Envelope struct {
	Type Type `json:"type"`

	UserID string `json:"userId,omitempty"`
	RoomID string `json:"roomId,omitempty"`

	// Timestamp carries the sender's clock on heartbeat/heartbeat_ack,
	// in unix milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`

	// Stroke is set on "stroke" messages.
	Stroke *state.Stroke `json:"stroke,omitempty"`

	// ID is the target stroke id on "erase" and "restore".
	ID string `json:"id,omitempty"`

	// Data is the serialized stroke log on "snapshot".
	Data json.RawMessage `json:"data,omitempty"`

	// Order is the proposed z-order on "layer_order", bottom-most first.
	Order []string `json:"order,omitempty"`

	// Presence ping fields, set on "location". Routed through unmodified;
	// the core never interprets them. No omitempty on the coordinates: a
	// ping at the origin still carries them.
	UserName string  `json:"userName,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Join builds the announcement a client sends on every (re)connect.
func Join(userID, roomID string) Envelope {
	return Envelope{Type: TypeJoin, UserID: userID, RoomID: roomID}
}

// Heartbeat builds a liveness probe carrying the given unix-millisecond
// timestamp.
func Heartbeat(ts int64) Envelope {
	return Envelope{Type: TypeHeartbeat, Timestamp: ts}
}

// HeartbeatAck builds the immediate response to an inbound probe.
func HeartbeatAck(ts int64) Envelope {
	return Envelope{Type: TypeHeartbeatAck, Timestamp: ts}
}
