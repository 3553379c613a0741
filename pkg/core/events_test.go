package core_test

import (
	"testing"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

func TestBroker(t *testing.T) {
	t.Run("Delivers To All Subscribers", func(t *testing.T) {
		b := core.NewBroker(4, nil)
		defer b.Close()

		ch1, cancel1 := b.Subscribe()
		defer cancel1()
		ch2, cancel2 := b.Subscribe()
		defer cancel2()

		b.Publish(core.Event{Type: core.EventCreate, ID: "a"})

		if ev := <-ch1; ev.ID != "a" {
			t.Errorf("subscriber 1 got %+v", ev)
		}
		if ev := <-ch2; ev.ID != "a" {
			t.Errorf("subscriber 2 got %+v", ev)
		}
	})

	t.Run("Full Subscriber Misses Instead Of Blocking", func(t *testing.T) {
		b := core.NewBroker(1, nil)
		defer b.Close()

		slow, cancel := b.Subscribe()
		defer cancel()

		// Fills the buffer, then overflows it. Publish must return.
		b.Publish(core.Event{Type: core.EventCreate, ID: "first"})
		b.Publish(core.Event{Type: core.EventCreate, ID: "dropped"})

		if ev := <-slow; ev.ID != "first" {
			t.Errorf("got %+v, want the buffered event", ev)
		}
		select {
		case ev := <-slow:
			t.Errorf("expected the overflow event to be dropped, got %+v", ev)
		default:
		}
	})

	t.Run("Cancel Removes The Subscription", func(t *testing.T) {
		b := core.NewBroker(1, nil)
		defer b.Close()

		ch, cancel := b.Subscribe()
		if b.SubscriberCount() != 1 {
			t.Fatalf("count = %d, want 1", b.SubscriberCount())
		}

		cancel()
		if b.SubscriberCount() != 0 {
			t.Errorf("count = %d after cancel, want 0", b.SubscriberCount())
		}
		if _, open := <-ch; open {
			t.Error("channel still open after cancel")
		}
	})

	t.Run("Close Is Idempotent", func(t *testing.T) {
		b := core.NewBroker(1, nil)
		ch, _ := b.Subscribe()

		b.Close()
		b.Close()

		if _, open := <-ch; open {
			t.Error("channel still open after Close")
		}

		// Publishing and subscribing after Close are harmless.
		b.Publish(core.Event{Type: core.EventCreate, ID: "late"})
		late, _ := b.Subscribe()
		if _, open := <-late; open {
			t.Error("subscription after Close returned an open channel")
		}
	})
}
