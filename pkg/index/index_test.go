package index_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Gertschi2011/kiana-ledger/pkg/adapters/fs"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
	"github.com/Gertschi2011/kiana-ledger/pkg/identity"
	"github.com/Gertschi2011/kiana-ledger/pkg/index"
)

func setupIndex(t *testing.T) (*index.Index, string) {
	t.Helper()

	tmpDir := t.TempDir()

	ks := identity.NewKeyStore(filepath.Join(tmpDir, "keys"), nil)
	pair, err := ks.EnsureIdentity("owner")
	if err != nil {
		t.Fatalf("EnsureIdentity failed: %v", err)
	}
	signer := identity.NewSigner(pair, nil, identity.VerifySelf)

	store := fs.NewStore(fs.Config{
		Path:   filepath.Join(tmpDir, "records"),
		Signer: signer,
	})
	ctx := context.Background()
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	add := func(title, topic, content, source string, tags ...string) {
		rec := &core.Record{
			Title:   title,
			Topic:   topic,
			Content: content,
			Tags:    tags,
			Meta:    core.Meta{Provenance: "owner", Status: core.StatusActive, Source: source},
		}
		if err := signer.Sign(rec); err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
		if _, err := store.Store(ctx, rec, core.StoreOptions{}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	add("Photovoltaik Grundlagen", "Energie", "Solarzellen wandeln Licht in Strom", "lehrbuch", "solar", "technik")
	add("Wetter heute", "Wetter", "Sonnig mit 25 Grad", "beobachtung", "draussen")
	add("Geschichte der Erde", "Geschichte", "Die Erde ist 4.5 Milliarden Jahre alt", "lehrbuch")

	indexPath := filepath.Join(tmpDir, ".ledger", "index.json")
	return index.New(store, indexPath, nil), indexPath
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Text Terms Intersect", func(t *testing.T) {
		ix, _ := setupIndex(t)

		hits, err := ix.Search(ctx, core.SearchFilter{Text: "Photovoltaik Grundlagen"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 1 {
			t.Fatalf("expected 1 hit, got %d", len(hits))
		}
		if hits[0].Title != "Photovoltaik Grundlagen" {
			t.Errorf("wrong hit: %+v", hits[0])
		}
	})

	t.Run("Case Insensitive", func(t *testing.T) {
		ix, _ := setupIndex(t)

		hits, err := ix.Search(ctx, core.SearchFilter{Text: "photovoltaik"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 1 {
			t.Errorf("expected 1 hit, got %d", len(hits))
		}
	})

	t.Run("Unmatched Term Yields Nothing", func(t *testing.T) {
		ix, _ := setupIndex(t)

		hits, err := ix.Search(ctx, core.SearchFilter{Text: "Photovoltaik Quantenphysik"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 0 {
			t.Errorf("expected no hits, got %d", len(hits))
		}
	})

	t.Run("Filter By Topic", func(t *testing.T) {
		ix, _ := setupIndex(t)

		hits, err := ix.Search(ctx, core.SearchFilter{Topic: "Wetter"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 1 || hits[0].Topic != "Wetter" {
			t.Errorf("unexpected hits: %+v", hits)
		}
	})

	t.Run("Filter By Tag And Source", func(t *testing.T) {
		ix, _ := setupIndex(t)

		hits, err := ix.Search(ctx, core.SearchFilter{Tags: []string{"solar"}})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 1 {
			t.Errorf("tag filter: expected 1 hit, got %d", len(hits))
		}

		hits, err = ix.Search(ctx, core.SearchFilter{Source: "lehrbuch"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 2 {
			t.Errorf("source filter: expected 2 hits, got %d", len(hits))
		}
	})

	t.Run("Topic Match Ranks First", func(t *testing.T) {
		ix, _ := setupIndex(t)

		hits, err := ix.Search(ctx, core.SearchFilter{Text: "Wetter"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) == 0 {
			t.Fatal("expected hits")
		}
		if hits[0].Topic != "Wetter" {
			t.Errorf("topic match not ranked first: %+v", hits)
		}
	})

	t.Run("Limit Caps Results", func(t *testing.T) {
		ix, _ := setupIndex(t)

		hits, err := ix.Search(ctx, core.SearchFilter{Source: "lehrbuch", Limit: 1})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 1 {
			t.Errorf("limit ignored, got %d hits", len(hits))
		}
	})
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()

	t.Run("Persists The Index", func(t *testing.T) {
		ix, path := setupIndex(t)

		if err := ix.Rebuild(ctx); err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("index file missing: %v", err)
		}
	})

	t.Run("Search Lazily Builds", func(t *testing.T) {
		ix, _ := setupIndex(t)

		// No explicit Rebuild.
		hits, err := ix.Search(ctx, core.SearchFilter{Text: "Erde"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 1 {
			t.Errorf("lazy build missed records: %d hits", len(hits))
		}
	})
}
