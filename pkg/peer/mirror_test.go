package peer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Gertschi2011/kiana-ledger/pkg/chain"
	"github.com/Gertschi2011/kiana-ledger/pkg/peer"
)

func TestMirror(t *testing.T) {
	ctx := context.Background()

	t.Run("Copies Then Skips", func(t *testing.T) {
		source := setupNode(t)
		source.append(t, "Wetter", "sonnig")
		source.append(t, "Wetter", "bewoelkt")

		target := filepath.Join(t.TempDir(), "mirror")
		result, err := peer.Mirror(ctx, source.chain, target, peer.MirrorOptions{})
		if err != nil {
			t.Fatalf("Mirror failed: %v", err)
		}
		if result.Copied != 2 {
			t.Errorf("copied = %d, want 2", result.Copied)
		}

		// The mirrored chain is a valid chain.
		mirrored := chain.New(target, nil, nil)
		if err := mirrored.Verify(ctx); err != nil {
			t.Errorf("mirrored chain does not verify: %v", err)
		}

		again, err := peer.Mirror(ctx, source.chain, target, peer.MirrorOptions{})
		if err != nil {
			t.Fatalf("second Mirror failed: %v", err)
		}
		if again.Copied != 0 || again.Skipped != 2 {
			t.Errorf("second pass copied = %d, skipped = %d", again.Copied, again.Skipped)
		}
	})

	t.Run("Delete Prunes Extraneous Files", func(t *testing.T) {
		source := setupNode(t)
		source.append(t, "Wetter", "sonnig")

		target := filepath.Join(t.TempDir(), "mirror")
		if err := os.MkdirAll(target, 0o755); err != nil {
			t.Fatal(err)
		}
		stale := filepath.Join(target, "block_999999.json")
		if err := os.WriteFile(stale, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}

		result, err := peer.Mirror(ctx, source.chain, target, peer.MirrorOptions{Delete: true})
		if err != nil {
			t.Fatalf("Mirror failed: %v", err)
		}
		if result.Deleted != 1 {
			t.Errorf("deleted = %d, want 1", result.Deleted)
		}
		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Error("stale file survived")
		}
	})

	t.Run("Without Delete Extraneous Files Survive", func(t *testing.T) {
		source := setupNode(t)
		source.append(t, "Wetter", "sonnig")

		target := filepath.Join(t.TempDir(), "mirror")
		if err := os.MkdirAll(target, 0o755); err != nil {
			t.Fatal(err)
		}
		stale := filepath.Join(target, "block_999999.json")
		if err := os.WriteFile(stale, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := peer.Mirror(ctx, source.chain, target, peer.MirrorOptions{}); err != nil {
			t.Fatalf("Mirror failed: %v", err)
		}
		if _, err := os.Stat(stale); err != nil {
			t.Error("stale file removed without --delete")
		}
	})
}
