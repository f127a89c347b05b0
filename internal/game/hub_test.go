package game

import (
	"testing"
	"time"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub.clients == nil {
		t.Error("clients map not initialized")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("fresh hub client count = %d, want 0", hub.GetClientCount())
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()

	// Nothing is draining the channel. Once it fills, further broadcasts
	// must drop instead of blocking the settlement path.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Broadcast(BetFeedMessage{Type: "bet_settled"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Broadcast blocked on a full channel")
	}
}

func TestHub_BroadcastDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Without clients the broadcast loop must still consume messages.
	for i := 0; i < 200; i++ {
		hub.Broadcast(BetFeedMessage{Type: "bet_settled"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(hub.broadcast) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("broadcast loop did not drain, %d pending", len(hub.broadcast))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
