package core

import "context"

// StoreOptions tunes a single store operation.
type StoreOptions struct {
	// Overwrite allows replacing an existing file with a different record
	// under the same id. Off by default: an id collision is a caller error.
	Overwrite bool
}

// StoreResult reports the outcome of a store operation.
type StoreResult struct {
	ID    string
	Path  string
	Hash  string
	Dedup bool
}

// QueryFilter narrows a linear scan over stored records. Zero-value fields
// are ignored; set fields combine with AND semantics.
type QueryFilter struct {
	Topic       string
	Tags        []string // subset match
	ContentHash string   // matches Meta.CanonicalHash
	IDGlob      string   // doublestar pattern over record ids
	Limit       int
}

// Repository defines the contract for storing and retrieving loose records.
// Adhering to this interface keeps the core independent of the underlying
// storage mechanism.
type Repository interface {
	// Initialize ensures the underlying storage is ready.
	Initialize(ctx context.Context) error

	// Store validates and persists a record. It is idempotent: re-submitting
	// a byte-identical record yields StoreResult.Dedup without a write.
	Store(ctx context.Context, rec *Record, opts StoreOptions) (StoreResult, error)

	// Load retrieves a record by id. With verify set it fails rather than
	// return tampered data.
	Load(ctx context.Context, id string, verify bool) (*Record, error)

	// Query scans stored records, newest-modified first, capped at f.Limit.
	Query(ctx context.Context, f QueryFilter) ([]*Record, error)

	// List returns all stored records without verification.
	List(ctx context.Context) ([]*Record, error)
}

// Watchable defines repositories that can observe external changes.
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

// Ledger is the tamper-evident, hash-linked audit trail.
type Ledger interface {
	Initialize(ctx context.Context) error

	// Append commits a record as the new chain head.
	Append(ctx context.Context, rec *Record) (*ChainEntry, error)

	// Verify walks the chain from genesis and fails fast on the first
	// broken link. Read-only and side-effect-free.
	Verify(ctx context.Context) error

	// Entries returns all entries in block order.
	Entries(ctx context.Context) ([]*ChainEntry, error)

	// Head returns the latest entry, or nil for an empty chain.
	Head(ctx context.Context) (*ChainEntry, error)
}

// SearchFilter narrows an index query. Set fields combine with AND
// semantics; terms within Text also combine with AND.
type SearchFilter struct {
	Topic  string
	Tags   []string
	Source string
	Text   string
	Limit  int
}

// IndexMeta is the per-record metadata returned by a search.
type IndexMeta struct {
	ID            string   `json:"id"`
	Title         string   `json:"title,omitempty"`
	Topic         string   `json:"topic,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Source        string   `json:"source,omitempty"`
	ContentLength int      `json:"content_length"`
	Score         int      `json:"-"`
}

// Searcher is the retrieval surface over stored records.
type Searcher interface {
	// Rebuild recomputes the full index from the repository.
	Rebuild(ctx context.Context) error

	// Search returns the top matches for the filter, best first.
	Search(ctx context.Context, f SearchFilter) ([]IndexMeta, error)
}

// Signer attests records and chain entries with the node identity and
// verifies attestations made by others.
type Signer interface {
	Sign(rec *Record) error
	Verify(rec *Record) error
	SignEntry(e *ChainEntry) error
	VerifyEntry(e *ChainEntry) error
}
