package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestJoinBroadcastsToExistingMembersOnly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	bob := NewClient("conn-b")
	carol := NewClient("conn-c")

	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	hub.RegisterClient(carol)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	waitMembers(t, hub, "R1", 1)

	// Bob joins: only Alice is notified, and about Bob.
	joinRoom(t, hub, bob, "R1", "b", "Bob")
	ev := mustEvent(t, alice.Events, EventUserConnected)
	if ev.UserID != "b" || ev.Meta.Name != "Bob" || ev.Room != "R1" {
		t.Fatalf("unexpected user-connected event: %+v", ev)
	}
	// Bob is never told about the pre-existing member.
	mustNoEvent(t, bob.Events, EventUserConnected, 100*time.Millisecond)
	waitMembers(t, hub, "R1", 2)

	// Carol joins: both Alice and Bob are notified, about Carol.
	joinRoom(t, hub, carol, "R1", "c", "Carol")
	for _, existing := range []*Client{alice, bob} {
		ev := mustEvent(t, existing.Events, EventUserConnected)
		if ev.UserID != "c" {
			t.Fatalf("expected user-connected about c, got %+v", ev)
		}
	}
	mustNoEvent(t, carol.Events, EventUserConnected, 100*time.Millisecond)
}

func TestDisconnectBroadcastsExactlyOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	bob := NewClient("conn-b")
	carol := NewClient("conn-c")

	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	hub.RegisterClient(carol)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	joinRoom(t, hub, bob, "R1", "b", "Bob")
	joinRoom(t, hub, carol, "R1", "c", "Carol")
	waitMembers(t, hub, "R1", 3)

	drain(alice.Events)
	drain(carol.Events)

	hub.UnregisterClient(bob)

	for _, remaining := range []*Client{alice, carol} {
		ev := mustEvent(t, remaining.Events, EventUserDisconnected)
		if ev.UserID != "b" {
			t.Fatalf("expected user-disconnected about b, got %+v", ev)
		}
		mustNoEvent(t, remaining.Events, EventUserDisconnected, 100*time.Millisecond)
	}
	waitMembers(t, hub, "R1", 2)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	bob := NewClient("conn-b")

	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	joinRoom(t, hub, bob, "R1", "b", "Bob")
	waitMembers(t, hub, "R1", 2)
	drain(alice.Events)

	// A late error event after close triggers a second unregister.
	hub.UnregisterClient(bob)
	hub.UnregisterClient(bob)

	ev := mustEvent(t, alice.Events, EventUserDisconnected)
	if ev.UserID != "b" {
		t.Fatalf("expected user-disconnected about b, got %+v", ev)
	}
	mustNoEvent(t, alice.Events, EventUserDisconnected, 150*time.Millisecond)
}

func TestRoomReclaimedAfterLastDisconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	bob := NewClient("conn-b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	joinRoom(t, hub, bob, "R1", "b", "Bob")
	waitMembers(t, hub, "R1", 2)

	hub.UnregisterClient(alice)
	hub.UnregisterClient(bob)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := hub.Stats(); s.Rooms == 0 && s.Members == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s := hub.Stats(); s.Rooms != 0 || s.Members != 0 {
		t.Fatalf("expected empty hub, got %+v", s)
	}

	// Re-occupying the same room id starts from a clean slate.
	dave := NewClient("conn-d")
	hub.RegisterClient(dave)
	joinRoom(t, hub, dave, "R1", "d", "Dave")
	waitMembers(t, hub, "R1", 1)

	members := hub.RoomMembers("R1")
	if len(members) != 1 || members[0].UserID != "d" {
		t.Fatalf("stale members survived room reuse: %+v", members)
	}
	mustNoEvent(t, dave.Events, EventUserConnected, 100*time.Millisecond)
}

func TestSecondJoinOnSameConnectionRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	hub.RegisterClient(alice)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	waitMembers(t, hub, "R1", 1)

	// Same room, same user id: still rejected, one room per connection.
	joinRoom(t, hub, alice, "R1", "a", "Alice")
	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadyJoined {
		t.Fatalf("expected already_joined, got %+v", ev)
	}

	joinRoom(t, hub, alice, "R2", "a2", "Alice")
	ev = mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadyJoined {
		t.Fatalf("expected already_joined, got %+v", ev)
	}

	if got := len(hub.RoomMembers("R1")); got != 1 {
		t.Fatalf("membership corrupted by rejected joins: %d", got)
	}
}

func TestDuplicateUserIDRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	impostor := NewClient("conn-x")
	hub.RegisterClient(alice)
	hub.RegisterClient(impostor)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	waitMembers(t, hub, "R1", 1)

	joinRoom(t, hub, impostor, "R1", "a", "Mallory")
	ev := mustEvent(t, impostor.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeDuplicateUser {
		t.Fatalf("expected duplicate_user, got %+v", ev)
	}

	// The original member is untouched.
	members := hub.RoomMembers("R1")
	if len(members) != 1 || members[0].Meta.Name != "Alice" {
		t.Fatalf("original member clobbered: %+v", members)
	}
	mustNoEvent(t, alice.Events, EventUserConnected, 100*time.Millisecond)
}

func TestJoinWithMissingIdentifiersRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "", UserID: "a"}
	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", ev)
	}

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "R1", UserID: ""}
	ev = mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", ev)
	}

	if s := hub.Stats(); s.Rooms != 0 {
		t.Fatalf("malformed join created a room: %+v", s)
	}
}

func TestLeaveRoomAllowsRejoin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	bob := NewClient("conn-b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	joinRoom(t, hub, bob, "R1", "b", "Bob")
	waitMembers(t, hub, "R1", 2)
	drain(alice.Events)

	bob.Commands <- &Command{Kind: CommandLeaveRoom}
	ev := mustEvent(t, alice.Events, EventUserDisconnected)
	if ev.UserID != "b" {
		t.Fatalf("expected user-disconnected about b, got %+v", ev)
	}

	// The connection survives an explicit leave and may join again.
	joinRoom(t, hub, bob, "R2", "b", "Bob")
	waitMembers(t, hub, "R2", 1)
}

func TestSignalRelayedToTargetOnly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	bob := NewClient("conn-b")
	carol := NewClient("conn-c")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	hub.RegisterClient(carol)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	joinRoom(t, hub, bob, "R1", "b", "Bob")
	joinRoom(t, hub, carol, "R1", "c", "Carol")
	waitMembers(t, hub, "R1", 3)

	payload := json.RawMessage(`{"kind":"offer","sdp":"v=0"}`)
	alice.Commands <- &Command{Kind: CommandRelaySignal, To: "b", Payload: payload}

	ev := mustEvent(t, bob.Events, EventSignal)
	if ev.From != "a" || string(ev.Payload) != string(payload) {
		t.Fatalf("unexpected signal event: %+v", ev)
	}
	mustNoEvent(t, carol.Events, EventSignal, 100*time.Millisecond)
}

func TestSignalErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	hub.RegisterClient(alice)

	// Before joining: not_joined.
	alice.Commands <- &Command{Kind: CommandRelaySignal, To: "b"}
	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotJoined {
		t.Fatalf("expected not_joined, got %+v", ev)
	}

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	waitMembers(t, hub, "R1", 1)

	// Absent target: unknown_peer.
	alice.Commands <- &Command{Kind: CommandRelaySignal, To: "ghost"}
	ev = mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeUnknownPeer {
		t.Fatalf("expected unknown_peer, got %+v", ev)
	}

	// Self target: also unknown_peer, a peer never signals itself.
	alice.Commands <- &Command{Kind: CommandRelaySignal, To: "a"}
	ev = mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeUnknownPeer {
		t.Fatalf("expected unknown_peer, got %+v", ev)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	bob := NewClient("conn-b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	joinRoom(t, hub, alice, "R1", "a", "Alice")
	joinRoom(t, hub, bob, "R2", "b", "Bob")
	waitMembers(t, hub, "R1", 1)
	waitMembers(t, hub, "R2", 1)

	mustNoEvent(t, alice.Events, EventUserConnected, 100*time.Millisecond)

	hub.UnregisterClient(bob)
	mustNoEvent(t, alice.Events, EventUserDisconnected, 100*time.Millisecond)
}

func TestSlowConsumerDoesNotStallRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	slow := NewClient("conn-slow")
	healthy := NewClient("conn-healthy")
	hub.RegisterClient(slow)
	hub.RegisterClient(healthy)

	joinRoom(t, hub, slow, "R1", "slow", "Slow")
	waitMembers(t, hub, "R1", 1)
	joinRoom(t, hub, healthy, "R1", "healthy", "Healthy")
	waitMembers(t, hub, "R1", 2)
	drain(slow.Events)
	drain(healthy.Events)

	// Saturate the slow member's event buffer well past its capacity
	// and never drain it again. The healthy member is drained each
	// round so only the slow one backs up.
	for i := 0; i < 12; i++ {
		filler := NewClient(fmt.Sprintf("conn-f%d", i))
		hub.RegisterClient(filler)
		joinRoom(t, hub, filler, "R1", fmt.Sprintf("f%d", i), "Filler")
		waitMembers(t, hub, "R1", 3+i)
		drain(healthy.Events)
	}

	// A further join still reaches the healthy member promptly; the
	// backed-up member costs it nothing.
	late := NewClient("conn-late")
	hub.RegisterClient(late)
	joinRoom(t, hub, late, "R1", "late", "Late")
	ev := mustEvent(t, healthy.Events, EventUserConnected)
	if ev.UserID != "late" {
		t.Fatalf("expected user-connected about late, got %+v", ev)
	}

	// And the hub keeps answering queries.
	if got := hub.Stats(); got.Rooms != 1 || got.Members != 15 {
		t.Fatalf("stats = %+v, want 1 room with 15 members", got)
	}
}

func TestStoppedHubDoesNotBlockCallers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("conn-a")
	hub.RegisterClient(alice)
	joinRoom(t, hub, alice, "R1", "a", "Alice")
	waitMembers(t, hub, "R1", 1)

	cancel()

	finished := make(chan struct{})
	go func() {
		hub.UnregisterClient(alice)
		hub.RegisterClient(NewClient("conn-b"))
		hub.Stats()
		hub.RoomMembers("R1")
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("hub calls blocked after the hub stopped")
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
