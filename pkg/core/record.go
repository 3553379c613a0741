// Package core contains the domain model of the ledger: signed,
// content-addressed knowledge records, the hash-linked chain, and the
// contracts the infrastructure adapters implement.
package core

import "time"

// TimeLayout is the timestamp format used in records and chain entries.
// Millisecond precision, always UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Now returns the current UTC time in the ledger's timestamp format.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusActive     Status = "active"
	StatusArchived   Status = "archived"
	StatusUpdated    Status = "updated"
	StatusDeprecated Status = "deprecated"
)

// Meta carries the provenance and lineage of a record. Provenance is
// mandatory; a record without it is rejected before anything else is
// checked.
type Meta struct {
	// Provenance names who or what produced this knowledge.
	Provenance string `json:"provenance"`

	// CanonicalHash is the SHA-256 of the raw content, used for semantic
	// duplicate detection independent of metadata.
	CanonicalHash string `json:"canonical_hash,omitempty"`

	// PrevID links a superseding record back to the one it replaces.
	PrevID string `json:"prev_id,omitempty"`

	Status       Status `json:"status,omitempty"`
	ChangeReason string `json:"change_reason,omitempty"`

	// Source is where the knowledge came from (a book, an observation, a
	// conversation).
	Source string `json:"source,omitempty"`
}

// Record is one unit of stored knowledge. The id derives from the canonical
// hash, so the record is addressed by what it says, not where it sits.
//
// Hash, Signature, PubKey and SignedAt are volatile: they are excluded from
// the canonical form, so filling them never changes what is being attested.
type Record struct {
	ID      string   `json:"id,omitempty"`
	Topic   string   `json:"topic"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
	Meta    Meta     `json:"meta"`

	// Timestamp is part of the canonical form: the same knowledge recorded
	// at a different time is still the same knowledge (content hash), but a
	// different record.
	Timestamp string `json:"timestamp,omitempty"`

	Hash      string `json:"hash,omitempty"`
	Signature string `json:"signature,omitempty"`
	PubKey    string `json:"pubkey,omitempty"`
	SignedAt  string `json:"signed_at,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	return &out
}

// ChainOrigin marks entries produced by the chain itself, as opposed to
// loose records mirrored by a peer.
const ChainOrigin = "chain"

// ChainEntry is a record committed to the chain. BlockID and PreviousHash
// are part of the canonical form, binding hash and signature to the entry's
// position: moving an entry invalidates it.
type ChainEntry struct {
	Record

	BlockID      int    `json:"block_id"`
	PreviousHash string `json:"previous_hash"`
	Origin       string `json:"origin,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e *ChainEntry) Clone() *ChainEntry {
	out := *e
	out.Record = *e.Record.Clone()
	return &out
}
