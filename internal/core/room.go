package core

// Member is a participant's presence entry within a room.
type Member struct {
	UserID string
	Meta   Metadata
}

// Room groups the currently-joined participants of one named room.
// Rooms exist only while they have members; the Hub discards a room
// the moment its last member leaves.
type Room struct {
	ID      string
	members map[*Client]Member
	byUser  map[string]*Client
}

// NewRoom constructs a room with no members.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[*Client]Member),
		byUser:  make(map[string]*Client),
	}
}

// AddMember inserts a member record bound to the given client.
// Returns false if the user id is already taken by another client.
func (r *Room) AddMember(c *Client, m Member) bool {
	if _, taken := r.byUser[m.UserID]; taken {
		return false
	}
	r.members[c] = m
	r.byUser[m.UserID] = c
	return true
}

// RemoveMember deletes the client's member record. Returns the record
// and true if the client was a member.
func (r *Room) RemoveMember(c *Client) (Member, bool) {
	m, ok := r.members[c]
	if !ok {
		return Member{}, false
	}
	delete(r.members, c)
	delete(r.byUser, m.UserID)
	return m, true
}

// Lookup returns the client owning the given user id, if present.
func (r *Room) Lookup(userID string) (*Client, bool) {
	c, ok := r.byUser[userID]
	return c, ok
}

// BroadcastExcept sends an event to every member except the given one.
func (r *Room) BroadcastExcept(except *Client, event *Event) {
	for client := range r.members {
		if client == except {
			continue
		}
		select {
		case client.Events <- event:
		default:
			// Drop if slow consumer; delivery is at-most-once.
		}
	}
}

// Members returns a snapshot of all member records.
func (r *Room) Members() []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}

// Size returns the number of members in the room.
func (r *Room) Size() int { return len(r.members) }

// Empty returns true if no members remain.
func (r *Room) Empty() bool { return len(r.members) == 0 }
