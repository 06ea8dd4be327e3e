package session

import (
	"context"
	"testing"
	"time"
)

func TestBroadcastReachesSiblingsNotOriginator(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	pageID, v1, _ := fixture(t, d)

	hub := NewHub(8)

	a, err := Build(ctx, d, Scope{Binder: "study"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(ctx, d, Scope{Binder: "study"})
	if err != nil {
		t.Fatal(err)
	}
	aInbox := a.JoinGroup(hub, "desk")
	bInbox := b.JoinGroup(hub, "desk")

	if _, err := a.HandleEvent(ctx, d, testConfig(), Event{
		Kind:      EventPreviewChanged,
		PageID:    pageID,
		VersionID: v1,
	}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	select {
	case ev := <-bInbox:
		if ev.Kind != EventPreviewChanged || ev.VersionID != v1 {
			t.Errorf("sibling got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("sibling never received the broadcast")
	}

	select {
	case ev := <-aInbox:
		t.Errorf("originator received its own event: %+v", ev)
	default:
	}
}

func TestBroadcastNeverBlocksOnFullInbox(t *testing.T) {
	hub := NewHub(1)
	hub.Join("desk", "slow")

	done := make(chan struct{})
	go func() {
		// Far more events than the slow listener's buffer holds.
		for i := 0; i < 100; i++ {
			hub.Broadcast("desk", "fast", Event{Kind: EventNavigated, Index: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full inbox")
	}
}

func TestBroadcastPreservesOrderPerListener(t *testing.T) {
	hub := NewHub(16)
	inbox := hub.Join("desk", "listener")

	for i := 0; i < 10; i++ {
		hub.Broadcast("desk", "origin", Event{Kind: EventNavigated, Index: i})
	}

	for i := 0; i < 10; i++ {
		select {
		case ev := <-inbox:
			if ev.Index != i {
				t.Fatalf("event %d arrived at position %d", ev.Index, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestLeaveClosesInbox(t *testing.T) {
	hub := NewHub(4)
	inbox := hub.Join("desk", "s1")
	hub.Leave("desk", "s1")

	select {
	case _, ok := <-inbox:
		if ok {
			t.Error("expected closed inbox")
		}
	case <-time.After(time.Second):
		t.Fatal("inbox not closed")
	}

	// Broadcasting to an empty group is a no-op.
	hub.Broadcast("desk", "s2", Event{Kind: EventNavigated})
}
