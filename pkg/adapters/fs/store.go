// Package fs implements the ledger storage contracts on the local
// filesystem: one JSON file per record, keys sorted for reproducibility,
// atomic temp-file+rename writes.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Gertschi2011/kiana-ledger/pkg/canonical"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

const recordExt = ".json"

// shortIDLen is how many hex chars of the content hash name a record whose
// producer assigned no id.
const shortIDLen = 16

var safeID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Config holds the configuration for the filesystem store.
type Config struct {
	Path      string // records directory
	SystemDir string // hidden metadata directory name to skip on walks, e.g. ".ledger"
	Logger    *slog.Logger
	Signer    core.Signer
}

// Store implements core.Repository on a directory of record files. A single
// mutex serializes the duplicate-check-then-write sequence so concurrent
// writers cannot interleave.
type Store struct {
	Path   string
	config Config

	mu            sync.Mutex
	hashes        map[string]string // record hash -> id
	contentHashes map[string]string // meta.canonical_hash -> id
	indexed       bool

	watchMu       sync.Mutex
	watcherActive bool
}

// NewStore creates a filesystem-backed record store.
func NewStore(config Config) *Store {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.SystemDir == "" {
		config.SystemDir = ".ledger"
	}
	return &Store{
		Path:          config.Path,
		config:        config,
		hashes:        make(map[string]string),
		contentHashes: make(map[string]string),
	}
}

// Initialize creates the records directory.
func (s *Store) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.Path, 0755); err != nil {
		return fmt.Errorf("failed to create records directory: %w", err)
	}
	return nil
}

// Store validates and persists a record.
//
// Workflow:
//  1. Reject empty provenance.
//  2. Compute and assign the canonical hash (and the content hash used for
//     fast duplicate detection, unless the producer set one).
//  3. Require a valid signature; unsigned records are never stored.
//  4. Dedup against existing record hashes and content hashes.
//  5. Resolve the destination path by id (first 16 hex chars of the hash
//     when no id is assigned) and detect id collisions.
//  6. Write atomically.
func (s *Store) Store(ctx context.Context, rec *core.Record, opts core.StoreOptions) (core.StoreResult, error) {
	if strings.TrimSpace(rec.Meta.Provenance) == "" {
		return core.StoreResult{}, core.NewError(core.CodeProvenanceMissing, "meta.provenance must not be empty")
	}

	if rec.Timestamp == "" {
		rec.Timestamp = core.Now()
	}

	hash, err := canonical.Hash(rec)
	if err != nil {
		return core.StoreResult{}, core.WrapError(core.CodeHashMismatch, err, "cannot canonicalize record")
	}
	rec.Hash = hash
	if rec.Meta.CanonicalHash == "" {
		rec.Meta.CanonicalHash = canonical.ContentHash(rec.Content)
		// meta is part of the canonical form, so recompute.
		if rec.Hash, err = canonical.Hash(rec); err != nil {
			return core.StoreResult{}, core.WrapError(core.CodeHashMismatch, err, "cannot canonicalize record")
		}
	}

	if s.config.Signer != nil {
		if err := s.config.Signer.Verify(rec); err != nil {
			return core.StoreResult{}, err
		}
	}

	id := rec.ID
	if id == "" {
		id = rec.Hash[:shortIDLen]
	}
	if !safeID.MatchString(id) {
		return core.StoreResult{}, core.NewError(core.CodeIDCollision, "id %q is not a valid record id", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDedupIndex(); err != nil {
		return core.StoreResult{}, err
	}

	if existing, ok := s.hashes[rec.Hash]; ok {
		s.config.Logger.Debug("duplicate record hash", "id", id, "existing", existing)
		return core.StoreResult{ID: existing, Hash: rec.Hash, Dedup: true}, nil
	}
	// Content-level dedup only applies to fresh records: a supersession
	// legitimately re-submits unchanged content under a new lineage.
	if rec.Meta.PrevID == "" {
		if existing, ok := s.contentHashes[rec.Meta.CanonicalHash]; ok {
			s.config.Logger.Debug("duplicate record content", "id", id, "existing", existing)
			return core.StoreResult{ID: existing, Hash: rec.Hash, Dedup: true}, nil
		}
	}

	fullPath := filepath.Join(s.Path, id+recordExt)
	if _, err := os.Stat(fullPath); err == nil && !opts.Overwrite {
		stored, err := s.readRecord(fullPath)
		if err != nil {
			return core.StoreResult{}, core.WrapError(core.CodeIDCollision, err, "existing record at %s is unreadable", fullPath)
		}
		if stored.Hash == rec.Hash {
			return core.StoreResult{ID: id, Path: fullPath, Hash: rec.Hash, Dedup: true}, nil
		}
		return core.StoreResult{}, core.NewError(core.CodeIDCollision, "id %q already holds a different record", id)
	}

	rec.ID = id
	data, err := canonical.JSON(rec)
	if err != nil {
		return core.StoreResult{}, fmt.Errorf("failed to serialize record: %w", err)
	}
	if err := WriteFileAtomic(fullPath, append(data, '\n'), 0644); err != nil {
		return core.StoreResult{}, fmt.Errorf("failed to write record: %w", err)
	}

	s.hashes[rec.Hash] = id
	s.contentHashes[rec.Meta.CanonicalHash] = id

	s.config.Logger.Info("record stored", "id", id, "hash", rec.Hash, "provenance", rec.Meta.Provenance)
	return core.StoreResult{ID: id, Path: fullPath, Hash: rec.Hash}, nil
}

// Load retrieves a record by id. With verify set, a stored hash that no
// longer matches the recomputed canonical hash or a failing signature is
// surfaced instead of tampered data.
func (s *Store) Load(ctx context.Context, id string, verify bool) (*core.Record, error) {
	// An id that could escape the records directory never names a record.
	if !safeID.MatchString(id) {
		return nil, core.NewError(core.CodeNotFound, "record %q not found", id)
	}
	fullPath := filepath.Join(s.Path, id+recordExt)
	rec, err := s.readRecord(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewError(core.CodeNotFound, "record %q not found", id)
		}
		return nil, err
	}

	if verify {
		computed, err := canonical.Hash(rec)
		if err != nil {
			return nil, core.WrapError(core.CodeHashMismatch, err, "cannot canonicalize record %q", id)
		}
		if computed != rec.Hash {
			return nil, core.NewError(core.CodeHashMismatch, "record %q: stored hash %s does not match computed %s", id, rec.Hash, computed)
		}
		if s.config.Signer != nil {
			if err := s.config.Signer.Verify(rec); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

// Query scans stored records, newest-modified first, capped at f.Limit.
func (s *Store) Query(ctx context.Context, f core.QueryFilter) ([]*core.Record, error) {
	type hit struct {
		rec   *core.Record
		mtime time.Time
	}

	var hits []hit
	err := s.walkRecords(func(path string, info os.FileInfo) error {
		rec, err := s.readRecord(path)
		if err != nil {
			s.config.Logger.Debug("skipping unreadable record", "path", path, "error", err)
			return nil
		}
		if !matches(rec, f) {
			return nil
		}
		hits = append(hits, hit{rec: rec, mtime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].mtime.After(hits[j].mtime) })

	limit := f.Limit
	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]*core.Record, 0, limit)
	for _, h := range hits[:limit] {
		out = append(out, h.rec)
	}
	return out, nil
}

// List returns all stored records without verification.
func (s *Store) List(ctx context.Context) ([]*core.Record, error) {
	var recs []*core.Record
	err := s.walkRecords(func(path string, info os.FileInfo) error {
		rec, err := s.readRecord(path)
		if err != nil {
			s.config.Logger.Debug("skipping unreadable record", "path", path, "error", err)
			return nil
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func matches(rec *core.Record, f core.QueryFilter) bool {
	if f.Topic != "" && rec.Topic != f.Topic {
		return false
	}
	if f.ContentHash != "" && rec.Meta.CanonicalHash != f.ContentHash {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, got := range rec.Tags {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IDGlob != "" {
		ok, err := doublestar.Match(f.IDGlob, rec.ID)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func (s *Store) walkRecords(fn func(path string, info os.FileInfo) error) error {
	return filepath.WalkDir(s.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == s.config.SystemDir || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(d.Name()) != recordExt || strings.HasPrefix(d.Name(), TempFilePrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(path, info)
	})
}

func (s *Store) readRecord(path string) (*core.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", path, err)
	}
	return &rec, nil
}

// ensureDedupIndex loads the stored hash sets once. Caller holds s.mu.
func (s *Store) ensureDedupIndex() error {
	if s.indexed {
		return nil
	}
	err := s.walkRecords(func(path string, info os.FileInfo) error {
		rec, err := s.readRecord(path)
		if err != nil {
			s.config.Logger.Warn("unreadable record during dedup scan", "path", path, "error", err)
			return nil
		}
		if rec.Hash != "" {
			s.hashes[rec.Hash] = rec.ID
		}
		if rec.Meta.CanonicalHash != "" {
			s.contentHashes[rec.Meta.CanonicalHash] = rec.ID
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			s.indexed = true
			return nil
		}
		return fmt.Errorf("failed to scan records for dedup: %w", err)
	}
	s.indexed = true
	return nil
}

var _ core.Repository = (*Store)(nil)
