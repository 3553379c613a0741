// Package ledger is the Composition Root for the kiana-ledger application.
//
// It connects the core business logic (Domain Layer) with the infrastructure
// adapters (Persistence, Identity, Chain) using the Hexagonal Architecture
// pattern.
//
// Philosophy:
//
// kiana-ledger is an append-only, content-addressed record store for
// personal knowledge bases. Every record is canonicalized, hashed, and
// signed with the node's Ed25519 identity before it touches disk; an
// optional hash-linked chain makes the history tamper-evident.
//
// Features:
//
//   - **Content Addressing**: Record ids derive from the canonical hash, so
//     identical knowledge stored twice is a no-op.
//   - **Signed Provenance**: Unsigned or unattributed records are rejected
//     at the door.
//   - **Hash-Linked Chain**: An audit trail whose entries each commit to
//     their predecessor.
//   - **Verified Sync**: Pulled entries are re-hashed locally; nothing a
//     peer claims is trusted as-is.
//   - **Extensible**: Storage hides behind `core.Repository`, so other
//     backends can replace the filesystem adapter.
//
// Usage:
//
//	// Initialize service with functional options
//	svc, err := ledger.New("./vault",
//		ledger.WithRole("owner"),
//		ledger.WithLogger(logger),
//	)
//
//	// Store a signed record
//	res, err := svc.Store(ctx, rec)
package ledger
