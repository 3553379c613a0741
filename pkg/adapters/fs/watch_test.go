package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

func waitFor(t *testing.T, events <-chan core.Event, want core.EventType, id string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("events channel closed early")
			}
			if ev.Type == want && ev.ID == id {
				return
			}
		case <-deadline:
			t.Fatalf("no %s event for %q within deadline", want, id)
		}
	}
}

func TestWatch(t *testing.T) {
	t.Run("Emits Create For External Writes", func(t *testing.T) {
		store, _, dir := setupStore(t)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := store.Watch(ctx, "")
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
		if !store.WatcherActive() {
			t.Error("watcher not reported active")
		}

		path := filepath.Join(dir, "extern-1.json")
		if err := os.WriteFile(path, []byte(`{"id":"extern-1"}`), 0644); err != nil {
			t.Fatal(err)
		}

		waitFor(t, events, core.EventCreate, "extern-1")
	})

	t.Run("Pattern Filters IDs", func(t *testing.T) {
		store, _, dir := setupStore(t)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := store.Watch(ctx, "wanted-*")
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}

		if err := os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "wanted-1.json"), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}

		// Only the matching id comes through.
		waitFor(t, events, core.EventCreate, "wanted-1")
		select {
		case ev := <-events:
			if ev.ID == "ignored" {
				t.Errorf("pattern let %q through", ev.ID)
			}
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("Channel Closes On Cancel", func(t *testing.T) {
		store, _, _ := setupStore(t)

		ctx, cancel := context.WithCancel(context.Background())
		events, err := store.Watch(ctx, "")
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}

		cancel()

		deadline := time.After(10 * time.Second)
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("events channel did not close after cancel")
			}
		}
	})
}
