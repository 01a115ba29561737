// Package client implements the participant side of the signaling
// protocol: it joins a room over WebSocket, drives a peer engine from
// the events the server relays, and holds peer events back until local
// media is ready.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/peer"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/proto"
)

// State is the adapter's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

const writeTimeout = 10 * time.Second

// Hooks let callers observe peer lifecycle without polling.
type Hooks struct {
	PeerJoined func(userID, name string)
	PeerLeft   func(userID string)
}

// Config configures an Adapter.
type Config struct {
	// URL of the server's WebSocket endpoint.
	URL string
	// Room to join.
	Room string
	// Name displayed to other participants.
	Name string
	// UserID defaults to a fresh UUID when empty.
	UserID string
}

// pendingPeer is a user-connected event held back until media settles.
type pendingPeer struct {
	userID string
	meta   core.Metadata
}

// pendingSignal is a relayed payload held back until media settles.
type pendingSignal struct {
	from    string
	payload json.RawMessage
}

// serverFrame mirrors proto.Outbound with the data left raw so each
// event type can be decoded on demand.
type serverFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Adapter joins exactly one room and relays between the server and a
// peer engine. It is not reusable after Close.
type Adapter struct {
	cfg    Config
	engine peer.Engine
	media  MediaSource
	hooks  Hooks
	log    zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu             sync.Mutex
	state          State
	mediaReady     bool
	mediaFailed    bool
	pendingPeers   []pendingPeer
	pendingSignals []pendingSignal
	remotes        map[string]core.Metadata

	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config, engine peer.Engine, media MediaSource, hooks Hooks, logger *zerolog.Logger) *Adapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.UserID == "" {
		cfg.UserID = uuid.New().String()
	}
	if media == nil {
		media = NoMedia{}
	}
	return &Adapter{
		cfg:     cfg,
		engine:  engine,
		media:   media,
		hooks:   hooks,
		log:     logger.With().Str("component", "client").Str("user_id", cfg.UserID).Logger(),
		remotes: make(map[string]core.Metadata),
		done:    make(chan struct{}),
	}
}

// UserID returns the identity this adapter joins with.
func (a *Adapter) UserID() string { return a.cfg.UserID }

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Remotes returns a snapshot of peers with established connections.
func (a *Adapter) Remotes() map[string]core.Metadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]core.Metadata, len(a.remotes))
	for id, meta := range a.remotes {
		out[id] = meta
	}
	return out
}

// Connect dials the server, announces presence in the room and starts
// media acquisition. Peer traffic is buffered until media settles one
// way or the other.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateDisconnected {
		a.mu.Unlock()
		return fmt.Errorf("adapter already %s", a.state)
	}
	a.state = StateConnecting
	a.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, a.cfg.URL, nil)
	if err != nil {
		a.setState(StateDisconnected)
		return fmt.Errorf("dial signaling server: %w", err)
	}
	a.conn = conn
	a.engine.Bind(a.sendSignal, a)

	join := proto.Inbound{Type: proto.InboundTypeJoinRoom}
	join.Data, err = json.Marshal(proto.JoinRoomData{
		RoomID:   a.cfg.Room,
		UserID:   a.cfg.UserID,
		Metadata: proto.Metadata{Name: a.cfg.Name},
	})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode failure")
		a.setState(StateDisconnected)
		return fmt.Errorf("encode join: %w", err)
	}
	if err := a.write(ctx, join); err != nil {
		conn.Close(websocket.StatusProtocolError, "join failed")
		a.setState(StateDisconnected)
		return fmt.Errorf("send join: %w", err)
	}
	a.setState(StateJoined)
	a.log.Info().Str("room", a.cfg.Room).Msg("joined room")

	go a.readLoop()
	go a.acquireMedia()
	return nil
}

// acquireMedia runs once. Failure is not fatal: the session stays
// joined so presence works, but buffered peer traffic is dropped and
// no calls are placed or answered.
func (a *Adapter) acquireMedia() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.done
		cancel()
	}()

	err := a.media.Acquire(ctx)

	a.mu.Lock()
	if err != nil {
		a.mediaFailed = true
		a.pendingPeers = nil
		a.pendingSignals = nil
		a.mu.Unlock()
		a.log.Warn().Err(err).Msg("media acquisition failed, staying joined without calls")
		return
	}
	a.mediaReady = true
	peers := a.pendingPeers
	signals := a.pendingSignals
	a.pendingPeers = nil
	a.pendingSignals = nil
	a.mu.Unlock()

	for _, p := range peers {
		a.callPeer(p.userID, p.meta)
	}
	for _, s := range signals {
		a.handleSignal(s.from, s.payload)
	}
}

func (a *Adapter) readLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.done
		cancel()
	}()

	for {
		var frame serverFrame
		if err := wsjson.Read(ctx, a.conn, &frame); err != nil {
			select {
			case <-a.done:
			default:
				a.log.Warn().Err(err).Msg("signaling connection lost")
			}
			a.Close()
			return
		}
		a.dispatch(frame)
	}
}

func (a *Adapter) dispatch(frame serverFrame) {
	switch frame.Type {
	case proto.OutboundTypeUserConnected:
		var data proto.UserConnectedData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			a.log.Warn().Err(err).Msg("malformed user-connected event")
			return
		}
		meta := core.Metadata{Name: data.Metadata.Name}
		if !a.gate(func() { a.pendingPeers = append(a.pendingPeers, pendingPeer{data.UserID, meta}) }) {
			return
		}
		a.callPeer(data.UserID, meta)

	case proto.OutboundTypeUserDisconnected:
		var data proto.UserDisconnectedData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			a.log.Warn().Err(err).Msg("malformed user-disconnected event")
			return
		}
		a.dropPending(data.UserID)
		a.engine.ClosePeer(data.UserID)

	case proto.OutboundTypeSignal:
		var data proto.SignalEventData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			a.log.Warn().Err(err).Msg("malformed signal event")
			return
		}
		if !a.gate(func() { a.pendingSignals = append(a.pendingSignals, pendingSignal{data.From, data.Payload}) }) {
			return
		}
		a.handleSignal(data.From, data.Payload)

	case proto.OutboundTypeError:
		var data proto.Error
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			a.log.Warn().Err(err).Msg("malformed error event")
			return
		}
		a.log.Warn().Str("code", data.Code).Str("msg", data.Msg).Msg("server rejected a message")

	default:
		a.log.Debug().Str("type", frame.Type).Msg("ignoring unknown event type")
	}
}

// gate reports whether the event should be processed now. Before media
// settles it runs buffer under the lock and returns false; after a
// media failure it drops the event and returns false.
func (a *Adapter) gate(buffer func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mediaFailed {
		return false
	}
	if !a.mediaReady {
		buffer()
		return false
	}
	return true
}

func (a *Adapter) dropPending(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	peers := a.pendingPeers[:0]
	for _, p := range a.pendingPeers {
		if p.userID != userID {
			peers = append(peers, p)
		}
	}
	a.pendingPeers = peers
	signals := a.pendingSignals[:0]
	for _, s := range a.pendingSignals {
		if s.from != userID {
			signals = append(signals, s)
		}
	}
	a.pendingSignals = signals
}

func (a *Adapter) callPeer(userID string, meta core.Metadata) {
	if err := a.engine.Call(context.Background(), userID, meta); err != nil {
		a.log.Warn().Err(err).Str("peer", userID).Msg("failed to call peer")
	}
}

func (a *Adapter) handleSignal(from string, payload json.RawMessage) {
	if err := a.engine.HandleSignal(context.Background(), from, payload); err != nil {
		a.log.Warn().Err(err).Str("peer", from).Msg("failed to handle signal")
	}
}

// sendSignal is given to the engine as its way back to the server.
func (a *Adapter) sendSignal(to string, payload json.RawMessage) error {
	data, err := json.Marshal(proto.SignalData{To: to, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return a.write(ctx, proto.Inbound{Type: proto.InboundTypeSignal, Data: data})
}

func (a *Adapter) write(ctx context.Context, msg proto.Inbound) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return wsjson.Write(ctx, a.conn, msg)
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// PeerConnected implements peer.Notifier.
func (a *Adapter) PeerConnected(userID string, meta core.Metadata) {
	a.mu.Lock()
	a.remotes[userID] = meta
	a.mu.Unlock()
	a.log.Info().Str("peer", userID).Str("name", meta.Name).Msg("peer connected")
	if a.hooks.PeerJoined != nil {
		a.hooks.PeerJoined(userID, meta.Name)
	}
}

// PeerClosed implements peer.Notifier.
func (a *Adapter) PeerClosed(userID string) {
	a.mu.Lock()
	_, known := a.remotes[userID]
	delete(a.remotes, userID)
	a.mu.Unlock()
	if !known {
		return
	}
	a.log.Info().Str("peer", userID).Msg("peer disconnected")
	if a.hooks.PeerLeft != nil {
		a.hooks.PeerLeft(userID)
	}
}

// Close tears the session down: the server broadcasts the departure to
// the room, the engine closes every peer connection. Idempotent.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		if a.conn != nil {
			a.conn.Close(websocket.StatusNormalClosure, "leaving")
		}
		a.engine.Close()
		a.setState(StateDisconnected)
		a.log.Info().Msg("left room")
	})
}
