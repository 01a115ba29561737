package peer

import (
	"context"
	"encoding/json"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
)

// SendFunc forwards an opaque signaling payload to a peer, addressed by
// user id, through the signaling channel.
type SendFunc func(to string, payload json.RawMessage) error

// Notifier receives peer lifecycle callbacks from the engine.
type Notifier interface {
	// PeerConnected fires once a peer connection reaches connected state.
	PeerConnected(userID string, meta core.Metadata)
	// PeerClosed fires when a peer connection closes or fails. It may be
	// redundant with a user-disconnected event from the server; both
	// paths must be safe.
	PeerClosed(userID string)
}

// Engine abstracts the peer-connection layer the signaling adapter
// drives. The adapter decides WHEN to call and answer; the engine owns
// HOW media sessions are negotiated and never touches room state.
type Engine interface {
	// Bind wires the engine to the signaling channel. Must be called
	// before any other method.
	Bind(send SendFunc, events Notifier)

	// Call starts outbound negotiation toward a peer that just joined.
	Call(ctx context.Context, userID string, meta core.Metadata) error

	// HandleSignal processes a relayed payload (offer, answer or ICE
	// candidate) from a peer.
	HandleSignal(ctx context.Context, from string, payload json.RawMessage) error

	// ClosePeer tears down the session with one peer. No-op if absent.
	ClosePeer(userID string)

	// Close tears down every session. Safe to call more than once.
	Close()
}
