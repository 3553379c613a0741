package fs_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

func countRecordFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	count := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			count++
		}
	}
	return count
}

// TestConcurrentStores verifies that the duplicate-check-then-write sequence
// is serialized: concurrent writers never interleave into duplicate files.
func TestConcurrentStores(t *testing.T) {
	ctx := context.Background()
	concurrency := 8

	t.Run("Identical Records Write Exactly One File", func(t *testing.T) {
		store, signer, dir := setupStore(t)
		rec := signedRecord(t, signer, "Geschichte", "Die Erde ist 4.5 Milliarden Jahre alt")

		var wg sync.WaitGroup
		start := make(chan struct{})
		results := make(chan core.StoreResult, concurrency)

		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				res, err := store.Store(ctx, rec.Clone(), core.StoreOptions{})
				if err != nil {
					t.Errorf("Store failed: %v", err)
					return
				}
				results <- res
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		fresh := 0
		for res := range results {
			if !res.Dedup {
				fresh++
			}
		}
		if fresh != 1 {
			t.Errorf("%d writers reported a fresh write, want exactly 1", fresh)
		}
		if n := countRecordFiles(t, dir); n != 1 {
			t.Errorf("%d record files on disk, want 1", n)
		}
	})

	t.Run("Distinct Records All Land Once", func(t *testing.T) {
		store, signer, dir := setupStore(t)

		recs := make([]*core.Record, concurrency)
		for i := range recs {
			recs[i] = signedRecord(t, signer, "Wetter", fmt.Sprintf("Messung %d: 22 Grad", i))
		}

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				if _, err := store.Store(ctx, recs[i], core.StoreOptions{}); err != nil {
					t.Errorf("Store %d failed: %v", i, err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		if n := countRecordFiles(t, dir); n != concurrency {
			t.Errorf("%d record files on disk, want %d", n, concurrency)
		}
		for i, rec := range recs {
			if _, err := store.Load(ctx, rec.ID, true); err != nil {
				t.Errorf("record %d (%s) unreadable after concurrent store: %v", i, rec.ID, err)
			}
		}
	})
}
