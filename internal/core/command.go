package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom announces the client's presence in a room.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom withdraws the client from its current room.
	CommandLeaveRoom
	// CommandRelaySignal forwards an opaque signaling payload to one peer.
	CommandRelaySignal
)

// Metadata is the free-form display information a participant announces.
type Metadata struct {
	Name string `json:"name"`
}

// Command represents an action requested by a client.
type Command struct {
	Kind   CommandKind
	Room   string
	UserID string
	Meta   Metadata

	// RelaySignal only.
	To      string
	Payload json.RawMessage
}
