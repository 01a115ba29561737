package core

import (
	"context"

	"github.com/rs/zerolog"
)

// session is the hub's view of one registered connection: which room it
// occupies (at most one) and under which user id.
type session struct {
	room   string
	userID string
}

// clientCommand pairs a command with the client that issued it.
type clientCommand struct {
	client *Client
	cmd    *Command
}

// Stats is a point-in-time summary of hub occupancy.
type Stats struct {
	Rooms   int
	Members int
}

type query struct {
	room    string
	stats   chan Stats
	members chan []Member
}

// Hub owns all room membership. It runs as a single goroutine so that
// adding a member, removing a member and computing a broadcast target
// set are atomic with respect to each other; no locks, no lost updates.
type Hub struct {
	log zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	queries    chan query

	rooms    map[string]*Room
	sessions map[*Client]*session

	// done is closed when Run returns so that callers never block on a
	// stopped hub.
	done chan struct{}
}

// NewHub creates a hub. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) *Hub {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Hub{
		log:        lg,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand),
		queries:    make(chan query),
		rooms:      make(map[string]*Room),
		sessions:   make(map[*Client]*session),
		done:       make(chan struct{}),
	}
}

// Run processes registrations, commands and queries until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.commands:
			h.handleCommand(cc.client, cc.cmd)
		case q := <-h.queries:
			h.handleQuery(q)
		}
	}
}

// RegisterClient attaches a connection to the hub. The hub starts
// pumping the client's commands once registration is processed.
// A no-op once the hub has stopped.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient detaches a connection, removing its membership and
// broadcasting user-disconnected to the remaining room members.
// Safe to call more than once; repeat calls and calls after the hub
// has stopped are no-ops.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Stats reports current room and member counts. Zero after the hub has
// stopped.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case h.queries <- query{stats: reply}:
		return <-reply
	case <-h.done:
		return Stats{}
	}
}

// RoomMembers returns a snapshot of a room's member records.
// A room that does not exist yields an empty slice.
func (h *Hub) RoomMembers(room string) []Member {
	reply := make(chan []Member, 1)
	select {
	case h.queries <- query{room: room, members: reply}:
		return <-reply
	case <-h.done:
		return nil
	}
}

func (h *Hub) handleRegister(c *Client) {
	if _, exists := h.sessions[c]; exists {
		return
	}
	h.sessions[c] = &session{}
	go h.pump(c)
	h.log.Debug().Str("client_id", c.ID).Msg("client registered")
}

func (h *Hub) handleUnregister(c *Client) {
	sess, exists := h.sessions[c]
	if !exists {
		// Already gone: the disconnect path is idempotent.
		return
	}
	h.leaveRoom(c, sess)
	delete(h.sessions, c)
	close(c.done)
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

// pump forwards the client's commands into the hub loop until the hub
// unregisters the client or stops.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.done:
				return
			}
		case <-c.done:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	sess, exists := h.sessions[c]
	if !exists {
		return
	}
	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoinRoom(c, sess, cmd)
	case CommandLeaveRoom:
		h.leaveRoom(c, sess)
	case CommandRelaySignal:
		h.handleRelaySignal(c, sess, cmd)
	}
}

// handleJoinRoom registers a member record under the room and fans out
// user-connected to every other current member. The joiner itself is
// told nothing about pre-existing members; existing members are the
// side that initiates peer connections toward the newcomer.
func (h *Hub) handleJoinRoom(c *Client, sess *session, cmd *Command) {
	if cmd.Room == "" || cmd.UserID == "" {
		h.sendError(c, ErrCodeBadRequest, "roomId and userId are required")
		return
	}
	if sess.room != "" {
		h.sendError(c, ErrCodeAlreadyJoined, ErrAlreadyJoined.Error())
		return
	}

	// Any string is a valid room id; rooms are an emergent grouping of
	// connections, not a pre-registered resource.
	room, exists := h.rooms[cmd.Room]
	if !exists {
		room = NewRoom(cmd.Room)
		h.rooms[cmd.Room] = room
	}

	member := Member{UserID: cmd.UserID, Meta: cmd.Meta}
	if !room.AddMember(c, member) {
		if room.Empty() {
			delete(h.rooms, cmd.Room)
		}
		h.sendError(c, ErrCodeDuplicateUser, ErrDuplicateUser.Error())
		return
	}
	sess.room = cmd.Room
	sess.userID = cmd.UserID

	room.BroadcastExcept(c, &Event{
		Kind:   EventUserConnected,
		Room:   cmd.Room,
		UserID: cmd.UserID,
		Meta:   cmd.Meta,
	})

	h.log.Info().
		Str("client_id", c.ID).
		Str("room", cmd.Room).
		Str("user_id", cmd.UserID).
		Int("members", room.Size()).
		Msg("user joined room")
}

// leaveRoom removes the client's membership, broadcasts
// user-disconnected to the remaining members and reclaims the room if
// it became empty. No-op when the client is not in a room.
func (h *Hub) leaveRoom(c *Client, sess *session) {
	if sess.room == "" {
		return
	}
	room, exists := h.rooms[sess.room]
	if !exists {
		sess.room, sess.userID = "", ""
		return
	}

	member, removed := room.RemoveMember(c)
	if removed {
		if room.Empty() {
			delete(h.rooms, sess.room)
		} else {
			room.BroadcastExcept(c, &Event{
				Kind:   EventUserDisconnected,
				Room:   sess.room,
				UserID: member.UserID,
			})
		}
		h.log.Info().
			Str("client_id", c.ID).
			Str("room", sess.room).
			Str("user_id", member.UserID).
			Msg("user left room")
	}
	sess.room, sess.userID = "", ""
}

// handleRelaySignal forwards an opaque payload to exactly one member of
// the sender's room. The hub never inspects the payload.
func (h *Hub) handleRelaySignal(c *Client, sess *session, cmd *Command) {
	if sess.room == "" {
		h.sendError(c, ErrCodeNotJoined, ErrNotJoined.Error())
		return
	}
	room := h.rooms[sess.room]
	target, found := room.Lookup(cmd.To)
	if !found || target == c {
		h.sendError(c, ErrCodeUnknownPeer, ErrUnknownPeer.Error())
		return
	}

	select {
	case target.Events <- &Event{
		Kind:    EventSignal,
		Room:    sess.room,
		From:    sess.userID,
		Payload: cmd.Payload,
	}:
	default:
		// Target's queue is full; at-most-once delivery, no retry.
		h.log.Debug().
			Str("room", sess.room).
			Str("to", cmd.To).
			Msg("signal dropped, slow consumer")
	}
}

func (h *Hub) handleQuery(q query) {
	if q.stats != nil {
		s := Stats{Rooms: len(h.rooms)}
		for _, room := range h.rooms {
			s.Members += room.Size()
		}
		q.stats <- s
	}
	if q.members != nil {
		if room, exists := h.rooms[q.room]; exists {
			q.members <- room.Members()
		} else {
			q.members <- nil
		}
	}
}

func (h *Hub) sendError(c *Client, code, msg string) {
	select {
	case c.Events <- &Event{Kind: EventError, Error: coreError(code, msg)}:
	default:
	}
}
