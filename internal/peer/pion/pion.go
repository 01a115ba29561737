// Package pion implements the peer engine on top of pion/webrtc. One
// Engine owns every peer connection of a single participant; the
// signaling adapter tells it when to call and feeds it relayed signals.
package pion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/peer"
)

// signal is the payload relayed between two peers. The server never
// inspects it.
type signal struct {
	Kind      string                 `json:"kind"` // offer, answer or candidate
	SDP       string                 `json:"sdp,omitempty"`
	Candidate *pion.ICECandidateInit `json:"candidate,omitempty"`
	Meta      core.Metadata          `json:"meta,omitempty"`
}

const (
	signalKindOffer     = "offer"
	signalKindAnswer    = "answer"
	signalKindCandidate = "candidate"
)

var errNotBound = errors.New("engine is not bound to a signaling channel")

// TrackHandler consumes remote media as it arrives.
type TrackHandler func(userID string, track *pion.TrackRemote, receiver *pion.RTPReceiver)

// Config configures the engine.
type Config struct {
	// STUNServers in URL form, e.g. "stun:stun.l.google.com:19302".
	STUNServers []string
	// Meta is attached to outbound offers so callees learn who calls.
	Meta core.Metadata
	// LocalTracks are published on every connection. Empty means
	// receive-only: transceivers are added in recvonly direction.
	LocalTracks []pion.TrackLocal
	// OnTrack, when set, receives remote media.
	OnTrack TrackHandler
}

// Engine is the pion-backed peer.Engine.
type Engine struct {
	cfg    Config
	log    zerolog.Logger
	send   peer.SendFunc
	events peer.Notifier

	mu     sync.Mutex
	peers  map[string]*session
	closed bool
}

// session is the negotiation state with one remote peer.
type session struct {
	pc      *pion.PeerConnection
	meta    core.Metadata
	pending []pion.ICECandidateInit // candidates received before the remote description
	gone    bool
}

func New(cfg Config, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{
		cfg:   cfg,
		log:   logger.With().Str("component", "peer").Logger(),
		peers: make(map[string]*session),
	}
}

func (e *Engine) Bind(send peer.SendFunc, events peer.Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.send = send
	e.events = events
}

// Call opens a connection toward userID and sends it an offer. The
// caller side is always the participant that was already in the room.
func (e *Engine) Call(ctx context.Context, userID string, meta core.Metadata) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.New("engine is closed")
	}
	if e.send == nil {
		e.mu.Unlock()
		return errNotBound
	}
	if _, ok := e.peers[userID]; ok {
		e.mu.Unlock()
		return nil // already negotiating with this peer
	}
	sess, err := e.newSession(userID, meta)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.peers[userID] = sess
	e.mu.Unlock()

	offer, err := sess.pc.CreateOffer(nil)
	if err != nil {
		e.ClosePeer(userID)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := sess.pc.SetLocalDescription(offer); err != nil {
		e.ClosePeer(userID)
		return fmt.Errorf("set local description: %w", err)
	}

	e.log.Debug().Str("user_id", userID).Msg("sending offer")
	return e.sendSignal(userID, signal{
		Kind: signalKindOffer,
		SDP:  sess.pc.LocalDescription().SDP,
		Meta: e.cfg.Meta,
	})
}

// HandleSignal dispatches a relayed payload from a peer. Offers create
// the session on the callee side; answers and candidates require one.
func (e *Engine) HandleSignal(ctx context.Context, from string, payload json.RawMessage) error {
	var sig signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}

	switch sig.Kind {
	case signalKindOffer:
		return e.handleOffer(from, sig)
	case signalKindAnswer:
		return e.handleAnswer(from, sig)
	case signalKindCandidate:
		return e.handleCandidate(from, sig)
	default:
		return fmt.Errorf("unexpected signal kind %q from %s", sig.Kind, from)
	}
}

func (e *Engine) handleOffer(from string, sig signal) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	sess, ok := e.peers[from]
	if !ok {
		var err error
		sess, err = e.newSession(from, sig.Meta)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		e.peers[from] = sess
	}
	e.mu.Unlock()

	desc := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sig.SDP}
	if err := sess.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := sess.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := sess.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	if err := e.flushPending(sess); err != nil {
		return err
	}

	e.log.Debug().Str("user_id", from).Msg("answering offer")
	return e.sendSignal(from, signal{
		Kind: signalKindAnswer,
		SDP:  sess.pc.LocalDescription().SDP,
		Meta: e.cfg.Meta,
	})
}

func (e *Engine) handleAnswer(from string, sig signal) error {
	e.mu.Lock()
	sess, ok := e.peers[from]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("answer from %s without an open call", from)
	}
	desc := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sig.SDP}
	if err := sess.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return e.flushPending(sess)
}

func (e *Engine) handleCandidate(from string, sig signal) error {
	if sig.Candidate == nil {
		return nil
	}
	e.mu.Lock()
	sess, ok := e.peers[from]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("candidate from %s without an open call", from)
	}
	// Candidates can race the SDP exchange; hold them until the remote
	// description is in place.
	if sess.pc.RemoteDescription() == nil {
		sess.pending = append(sess.pending, *sig.Candidate)
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	if err := sess.pc.AddICECandidate(*sig.Candidate); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (e *Engine) flushPending(sess *session) error {
	e.mu.Lock()
	pending := sess.pending
	sess.pending = nil
	e.mu.Unlock()
	for _, c := range pending {
		if err := sess.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}
	}
	return nil
}

// newSession builds a peer connection wired with ICE and lifecycle
// handlers. Caller holds e.mu.
func (e *Engine) newSession(userID string, meta core.Metadata) (*session, error) {
	var iceServers []pion.ICEServer
	if len(e.cfg.STUNServers) > 0 {
		iceServers = append(iceServers, pion.ICEServer{URLs: e.cfg.STUNServers})
	}
	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	if len(e.cfg.LocalTracks) > 0 {
		for _, track := range e.cfg.LocalTracks {
			if _, err := pc.AddTrack(track); err != nil {
				pc.Close()
				return nil, fmt.Errorf("add track: %w", err)
			}
		}
	} else {
		for _, kind := range []pion.RTPCodecType{pion.RTPCodecTypeAudio, pion.RTPCodecTypeVideo} {
			_, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
				Direction: pion.RTPTransceiverDirectionRecvonly,
			})
			if err != nil {
				pc.Close()
				return nil, fmt.Errorf("add transceiver: %w", err)
			}
		}
	}

	sess := &session{pc: pc, meta: meta}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		if err := e.sendSignal(userID, signal{Kind: signalKindCandidate, Candidate: &init}); err != nil {
			e.log.Warn().Err(err).Str("user_id", userID).Msg("failed to send ICE candidate")
		}
	})

	pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		e.log.Info().
			Str("user_id", userID).
			Str("kind", track.Kind().String()).
			Msg("remote track arrived")
		if e.cfg.OnTrack != nil {
			e.cfg.OnTrack(userID, track, receiver)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		e.log.Debug().Str("user_id", userID).Str("state", state.String()).Msg("connection state")
		switch state {
		case pion.PeerConnectionStateConnected:
			if e.events != nil {
				e.events.PeerConnected(userID, meta)
			}
		case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
			e.ClosePeer(userID)
		}
	})

	return sess, nil
}

func (e *Engine) sendSignal(to string, sig signal) error {
	e.mu.Lock()
	send := e.send
	e.mu.Unlock()
	if send == nil {
		return errNotBound
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return send(to, payload)
}

// ClosePeer tears down the session with userID. Safe to call for an
// unknown peer and safe to call twice: the server's user-disconnected
// event and pion's state callback both land here.
func (e *Engine) ClosePeer(userID string) {
	e.mu.Lock()
	sess, ok := e.peers[userID]
	if ok && !sess.gone {
		sess.gone = true
		delete(e.peers, userID)
	} else {
		ok = false
	}
	events := e.events
	e.mu.Unlock()
	if !ok {
		return
	}
	if err := sess.pc.Close(); err != nil {
		e.log.Warn().Err(err).Str("user_id", userID).Msg("failed to close peer connection")
	}
	if events != nil {
		events.PeerClosed(userID)
	}
}

// Close tears down every session.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	ids := make([]string, 0, len(e.peers))
	for id := range e.peers {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.ClosePeer(id)
	}
}

var _ peer.Engine = (*Engine)(nil)
