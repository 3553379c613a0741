// Package chain maintains the hash-linked audit trail: one file per entry,
// named by block id, each entry embedding the hash of its predecessor.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	lfs "github.com/Gertschi2011/kiana-ledger/pkg/adapters/fs"
	"github.com/Gertschi2011/kiana-ledger/pkg/canonical"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// genesisSeed is hashed once to produce the genesis sentinel. Deriving the
// sentinel from SHA-256 keeps previous_hash uniformly a 64-char hex string
// for every entry, including the first.
const genesisSeed = "kiana-ledger/genesis/v1"

// GenesisHash is the previous_hash of the first chain entry.
var GenesisHash = canonical.SHA256Hex([]byte(genesisSeed))

const (
	blockFileFormat  = "block_%06d.json"
	blockFilePattern = "block_*.json"
)

// Ledger implements core.Ledger on a directory of block files. Appends are
// strictly sequential: the head is read and extended under a single mutex so
// concurrent appends cannot diverge the chain. Verify shares the same lock
// so it never observes a half-written head.
type Ledger struct {
	dir    string
	signer core.Signer
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a ledger over dir. signer may be nil for read-only use
// (entries are then appended unsigned, which Verify tolerates).
func New(dir string, signer core.Signer, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{dir: dir, signer: signer, logger: logger}
}

// Dir returns the chain directory, used by sync mirroring.
func (l *Ledger) Dir() string { return l.dir }

// Initialize creates the chain directory.
func (l *Ledger) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create chain directory: %w", err)
	}
	return nil
}

// Append commits the record as the new chain head. The entry hash covers
// block_id and previous_hash, so reordering or relinking entries later is
// detectable.
func (l *Ledger) Append(ctx context.Context, rec *core.Record) (*core.ChainEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAllLocked()
	if err != nil {
		return nil, err
	}

	prevHash := GenesisHash
	blockID := 0
	if n := len(entries); n > 0 {
		prevHash = entries[n-1].Hash
		blockID = entries[n-1].BlockID + 1
	}

	entry := &core.ChainEntry{
		Record:       *rec.Clone(),
		BlockID:      blockID,
		PreviousHash: prevHash,
		Origin:       core.ChainOrigin,
	}
	entry.Hash = ""
	entry.Signature = ""
	entry.PubKey = ""
	entry.SignedAt = ""
	if entry.Timestamp == "" {
		entry.Timestamp = core.Now()
	}
	if entry.Meta.CanonicalHash == "" {
		entry.Meta.CanonicalHash = canonical.ContentHash(entry.Content)
	}

	hash, err := canonical.Hash(entry)
	if err != nil {
		return nil, core.WrapError(core.CodeHashMismatch, err, "cannot canonicalize chain entry")
	}
	entry.Hash = hash

	if l.signer != nil {
		if err := l.signer.SignEntry(entry); err != nil {
			return nil, err
		}
	}

	if err := l.writeEntryLocked(entry); err != nil {
		return nil, err
	}

	l.logger.Info("chain entry appended", "block_id", entry.BlockID, "hash", entry.Hash)
	return entry, nil
}

// Verify walks the chain from genesis. At each step it recomputes the entry
// hash, confirms the link to the predecessor, and checks the signature when
// one is present. The first failure stops verification: a broken link
// invalidates every subsequent entry. Read-only and side-effect-free.
func (l *Ledger) Verify(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAllLocked()
	if err != nil {
		return err
	}

	prevHash := GenesisHash
	for i, entry := range entries {
		computed, err := hashOf(entry)
		if err != nil {
			return &core.ChainError{Index: i, Reason: fmt.Sprintf("cannot canonicalize: %v", err)}
		}
		if computed != entry.Hash {
			return &core.ChainError{Index: i, Reason: fmt.Sprintf("stored hash %s does not match computed %s", entry.Hash, computed)}
		}
		if entry.PreviousHash != prevHash {
			return &core.ChainError{Index: i, Reason: fmt.Sprintf("previous_hash %s does not match prior entry hash %s", entry.PreviousHash, prevHash)}
		}
		if entry.Signature != "" && l.signer != nil {
			if err := l.signer.VerifyEntry(entry); err != nil {
				return &core.ChainError{Index: i, Reason: fmt.Sprintf("signature check failed: %v", err)}
			}
		}
		prevHash = entry.Hash
	}
	return nil
}

// Entries returns all entries in block order.
func (l *Ledger) Entries(ctx context.Context) ([]*core.ChainEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAllLocked()
}

// Head returns the latest entry, or nil for an empty chain.
func (l *Ledger) Head(ctx context.Context) (*core.ChainEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAllLocked()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[len(entries)-1], nil
}

// Find returns the entry with the given record id, or nil.
func (l *Ledger) Find(ctx context.Context, id string) (*core.ChainEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAllLocked()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

// Import writes an externally produced entry at its own block position
// after recomputing its canonical hash. An entry whose recomputed hash does
// not match its claimed hash is never persisted. Returns false when an
// identical entry already occupies the slot.
func (l *Ledger) Import(ctx context.Context, entry *core.ChainEntry) (bool, error) {
	computed, err := hashOf(entry)
	if err != nil {
		return false, core.WrapError(core.CodeHashMismatch, err, "cannot canonicalize entry %q", entry.ID)
	}
	if computed != entry.Hash {
		return false, core.NewError(core.CodeHashMismatch, "entry %q claims hash %s but canonicalizes to %s", entry.ID, entry.Hash, computed)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.blockPath(entry.BlockID)
	if existing, err := l.readEntry(path); err == nil {
		if existing.Hash == entry.Hash {
			return false, nil
		}
		// A different entry in the slot: replace it with the verified one.
		// The next Verify decides whether the resulting chain links up.
		l.logger.Warn("replacing mismatched chain entry", "block_id", entry.BlockID, "old_hash", existing.Hash, "new_hash", entry.Hash)
	}

	if err := l.writeEntryLocked(entry); err != nil {
		return false, err
	}
	return true, nil
}

func hashOf(entry *core.ChainEntry) (string, error) {
	return canonical.Hash(entry)
}

func (l *Ledger) blockPath(blockID int) string {
	return filepath.Join(l.dir, fmt.Sprintf(blockFileFormat, blockID))
}

func (l *Ledger) writeEntryLocked(entry *core.ChainEntry) error {
	data, err := canonical.JSON(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize chain entry: %w", err)
	}
	if err := lfs.WriteFileAtomic(l.blockPath(entry.BlockID), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write chain entry: %w", err)
	}
	return nil
}

func (l *Ledger) readEntry(path string) (*core.ChainEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry core.ChainEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse chain entry %s: %w", path, err)
	}
	return &entry, nil
}

// readAllLocked enumerates block files in ascending numeric order. Caller
// holds l.mu.
func (l *Ledger) readAllLocked() ([]*core.ChainEntry, error) {
	names, err := filepath.Glob(filepath.Join(l.dir, blockFilePattern))
	if err != nil {
		return nil, err
	}

	type numbered struct {
		path string
		id   int
	}
	ordered := make([]numbered, 0, len(names))
	for _, path := range names {
		base := filepath.Base(path)
		numPart := strings.TrimSuffix(strings.TrimPrefix(base, "block_"), ".json")
		id, err := strconv.Atoi(numPart)
		if err != nil {
			continue
		}
		ordered = append(ordered, numbered{path: path, id: id})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	entries := make([]*core.ChainEntry, 0, len(ordered))
	for _, n := range ordered {
		entry, err := l.readEntry(n.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read block %d: %w", n.id, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

var _ core.Ledger = (*Ledger)(nil)
