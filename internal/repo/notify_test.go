package repo

import (
	"context"
	"testing"
	"time"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

func TestNotifierDeliversToSessionSubscribers(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("s1")
	defer cancel()
	otherCh, otherCancel := n.Subscribe("s2")
	defer otherCancel()

	n.Publish(domain.ChatMessage{ID: "m1", SessionID: "s1"})

	select {
	case m := <-ch:
		if m.ID != "m1" {
			t.Fatalf("got %q, want m1", m.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}

	select {
	case m := <-otherCh:
		t.Fatalf("message leaked to other session: %q", m.ID)
	default:
	}
}

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier()

	ch1, cancel1 := n.Subscribe("s1")
	defer cancel1()
	ch2, cancel2 := n.Subscribe("s1")
	defer cancel2()

	n.Publish(domain.ChatMessage{ID: "m1", SessionID: "s1"})

	for _, ch := range []<-chan domain.ChatMessage{ch1, ch2} {
		select {
		case m := <-ch:
			if m.ID != "m1" {
				t.Fatalf("got %q, want m1", m.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("fan-out incomplete")
		}
	}
}

func TestNotifierCancelClosesChannel(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("s1")
	cancel()
	cancel() // second cancel is a no-op

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}

	// Publishing after cancel must not panic or block.
	n.Publish(domain.ChatMessage{ID: "m1", SessionID: "s1"})
}

func TestNotifierDropsWhenBufferFull(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("s1")
	defer cancel()

	// Channel buffer is 16; overfill without draining.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			n.Publish(domain.ChatMessage{ID: "m", SessionID: "s1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if len(ch) != 16 {
		t.Fatalf("buffered %d, want 16", len(ch))
	}
}

func TestStoreInsertPublishes(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	sessionID := seedSession(t, db)

	ch, cancel := store.SubscribeInserts(sessionID)
	defer cancel()

	m, err := store.InsertMessage(context.Background(), "client", sessionID, domain.RoleAgent, "pushed")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != m.ID {
			t.Fatalf("push id = %q, want %q", got.ID, m.ID)
		}
		if got.Message != "pushed" {
			t.Fatalf("push body = %q", got.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("insert not published")
	}
}
