package ledger

import (
	"log/slog"
	"time"

	"github.com/Gertschi2011/kiana-ledger/internal/platform"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// --- Types ---

// Record is a public alias for the signed ledger record.
type Record = core.Record

// ChainEntry is a public alias for a hash-linked chain entry.
type ChainEntry = core.ChainEntry

// Service is a public alias for the domain service.
type Service = core.Service

// Node bundles a wired service with its identity and chain collaborators.
type Node = platform.Node

// --- Configuration ---

// Option defines a functional option for configuring a ledger node.
type Option = platform.Option

// WithLogger sets the logger for the node.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".ledger").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithEventBuffer allows specifying the size of the event broker buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithRole sets the identity role the node signs with.
func WithRole(role string) Option {
	return platform.WithRole(role)
}

// WithStrictVerify controls registry-backed signature verification.
func WithStrictVerify(strict bool) Option {
	return platform.WithStrictVerify(strict)
}

// WithHTTPTimeout bounds outbound sync requests.
func WithHTTPTimeout(d time.Duration) Option {
	return platform.WithHTTPTimeout(d)
}

// --- Factory ---

// New creates a new ledger Service rooted at the given base directory.
func New(path string, opts ...Option) (*core.Service, error) {
	return platform.New(path, opts...)
}

// Open wires the full node, exposing identity and chain alongside the
// service.
func Open(path string, opts ...Option) (*platform.Node, error) {
	return platform.NewNode(path, opts...)
}
