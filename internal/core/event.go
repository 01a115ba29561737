package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUserConnected notifies existing room members about a new one.
	EventUserConnected EventKind = iota
	// EventUserDisconnected notifies remaining members that one left.
	EventUserDisconnected
	// EventSignal delivers a relayed signaling payload from one peer.
	EventSignal
	// EventError notifies the client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind   EventKind
	Room   string
	UserID string
	Meta   Metadata

	// EventSignal only.
	From    string
	Payload json.RawMessage

	// EventError only.
	Error *CoreError
}
