package ws

import (
	"testing"

	"trivia-competition-service/internal/domain"
)

func drain(c *client) []domain.Event {
	var out []domain.Event
	for {
		select {
		case e := <-c.send:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestBroadcastScopedToRoom(t *testing.T) {
	hub := NewHub(nil)

	spectatorA := newClient(nil)
	spectatorB := newClient(nil)
	moderatorA := newClient(nil)
	hub.register("comp-a", domain.AudienceSpectator, spectatorA)
	hub.register("comp-b", domain.AudienceSpectator, spectatorB)
	hub.register("comp-a", domain.AudienceModerator, moderatorA)

	hub.Broadcast("comp-a", domain.AudienceSpectator, domain.Event{Type: "results"})

	if got := drain(spectatorA); len(got) != 1 || got[0].Type != "results" {
		t.Fatalf("expected comp-a spectator to receive the event, got %+v", got)
	}
	if got := drain(spectatorB); len(got) != 0 {
		t.Fatalf("expected comp-b spectator to see nothing, got %+v", got)
	}
	if got := drain(moderatorA); len(got) != 0 {
		t.Fatalf("expected comp-a moderator to see nothing, got %+v", got)
	}
}

func TestBroadcastAllReachesEveryAudience(t *testing.T) {
	hub := NewHub(nil)

	clients := make(map[domain.Audience]*client)
	for _, audience := range domain.Audiences {
		c := newClient(nil)
		clients[audience] = c
		hub.register("comp-1", audience, c)
	}

	hub.BroadcastAll("comp-1", domain.Event{Type: "state-changed"})

	for audience, c := range clients {
		if got := drain(c); len(got) != 1 {
			t.Fatalf("audience %s: expected 1 event, got %d", audience, len(got))
		}
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(nil)

	c := newClient(nil)
	hub.register("comp-1", domain.AudienceSpectator, c)
	hub.unregister("comp-1", domain.AudienceSpectator, c)

	hub.Broadcast("comp-1", domain.AudienceSpectator, domain.Event{Type: "results"})
	if got := drain(c); len(got) != 0 {
		t.Fatalf("expected no delivery after unregister, got %+v", got)
	}
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	c := newClient(nil)

	for i := 0; i < cap(c.send)+1; i++ {
		c.enqueue(domain.Event{Type: "countdown-tick", Payload: i})
	}

	got := drain(c)
	if len(got) != cap(c.send) {
		t.Fatalf("expected a full queue, got %d", len(got))
	}
	// The oldest event made room for the newest.
	if got[0].Payload.(int) != 1 {
		t.Fatalf("expected oldest event dropped, head is %v", got[0].Payload)
	}
	if got[len(got)-1].Payload.(int) != cap(c.send) {
		t.Fatalf("expected newest event kept, tail is %v", got[len(got)-1].Payload)
	}
}
