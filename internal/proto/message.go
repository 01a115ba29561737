package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom  = "join-room"
	InboundTypeLeaveRoom = "leave-room"
	InboundTypeSignal    = "signal"

	OutboundTypeUserConnected    = "user-connected"
	OutboundTypeUserDisconnected = "user-disconnected"
	OutboundTypeSignal           = "signal"
	OutboundTypeError            = "error"
)

// Metadata carries a participant's display information.
type Metadata struct {
	Name string `json:"name"`
}

// JoinRoomData announces presence in a room. Any non-empty string is a
// valid roomId; rooms are created implicitly on first join.
type JoinRoomData struct {
	RoomID   string   `json:"roomId"`
	UserID   string   `json:"userId"`
	Metadata Metadata `json:"metadata"`
}

// SignalData asks the server to forward an opaque payload to one peer
// of the sender's room.
type SignalData struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// UserConnectedData is broadcast to existing room members when a new
// one joins.
type UserConnectedData struct {
	UserID   string   `json:"userId"`
	Metadata Metadata `json:"metadata"`
}

// UserDisconnectedData is broadcast when a member's connection drops.
type UserDisconnectedData struct {
	UserID string `json:"userId"`
}

// SignalEventData delivers a relayed payload to its target peer.
type SignalEventData struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
